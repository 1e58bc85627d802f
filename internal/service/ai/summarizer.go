package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/rollcall-app/rollcall/backend/internal/store"
)

const summarizerSystemPrompt = `You summarize database query results for a school attendance system.
Answer the user's question in one or two short sentences of plain language.
Never output SQL, table names or column names. If the result set is empty,
say plainly that no matching records were found.`

// summaryRowLimit caps how many rows are shown to the summarization model.
const summaryRowLimit = 20

// Summarizer turns a row preview into a short natural-language answer.
// Its output is advisory text only and never affects the rows returned to
// the caller.
type Summarizer struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewSummarizer compiles the summarization chain against the given model.
func NewSummarizer(ctx context.Context, chatModel model.BaseChatModel) (*Summarizer, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(summarizerSystemPrompt),
		schema.UserMessage("Question: {question}\n\nExecuted query (context only):\n{sql}\n\nFirst rows as JSON:\n{rows}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile summarization chain: %w", err)
	}

	return &Summarizer{chain: runnable}, nil
}

// Summarize describes up to the first 20 rows in plain language.
func (s *Summarizer) Summarize(ctx context.Context, question, sqlText string, rows []store.Row) (string, error) {
	preview := rows
	if len(preview) > summaryRowLimit {
		preview = preview[:summaryRowLimit]
	}

	rowsJSON, err := json.Marshal(preview)
	if err != nil {
		return "", fmt.Errorf("failed to encode rows for summarization: %w", err)
	}

	input := map[string]any{
		"question": question,
		"sql":      sqlText,
		"rows":     string(rowsJSON),
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run summarization chain: %w", err)
	}

	summary := strings.TrimSpace(response.Content)
	if summary == "" {
		return "", fmt.Errorf("summarization returned empty text")
	}
	return summary, nil
}
