// Package ai wraps the chat-model boundary: SQL generation, result
// summarization, and the confirmed write-path tool flow. Nothing in this
// package validates generated SQL; that is exclusively the auditor's job.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/rollcall-app/rollcall/backend/internal/catalog"
	"github.com/rollcall-app/rollcall/backend/internal/model/actor"
	agentmodel "github.com/rollcall-app/rollcall/backend/internal/model/agent"
)

// Generator turns a user message into one candidate SQL statement.
type Generator struct {
	chain    compose.Runnable[map[string]any, *schema.Message]
	rowLimit int
}

// NewGenerator compiles the generation chain against the given chat model.
// The model parameter is injectable so tests can supply a fake.
func NewGenerator(ctx context.Context, chatModel model.BaseChatModel, rowLimit int) (*Generator, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile sql generation chain: %w", err)
	}

	return &Generator{chain: runnable, rowLimit: rowLimit}, nil
}

// Generate returns the model's candidate SQL, stripped of code fences but
// otherwise verbatim. An empty reply is an error.
func (g *Generator) Generate(ctx context.Context, act actor.Context, message string, history []agentmodel.Turn) (string, error) {
	input := map[string]any{
		"system":  g.buildSystemPrompt(act),
		"history": historyMessages(history),
		"query":   message,
	}

	response, err := g.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run sql generation chain: %w", err)
	}

	sqlText := StripCodeFences(response.Content)
	if strings.TrimSpace(sqlText) == "" {
		return "", fmt.Errorf("sql generation returned empty text")
	}
	return sqlText, nil
}

func (g *Generator) buildSystemPrompt(act actor.Context) string {
	var b strings.Builder
	b.WriteString("You translate natural-language attendance questions into a single SQL query.\n\n")
	b.WriteString("RULES:\n")
	b.WriteString("1. Output ONLY the SQL statement - no explanations, no markdown fences, no comments.\n")
	b.WriteString("2. Emit exactly one SELECT statement (a WITH prefix is allowed). Never any modifying statement.\n")
	fmt.Fprintf(&b, "3. Always cap the result with TOP (%d).\n", g.rowLimit)
	b.WriteString("4. Reference only the tables listed below.\n")

	switch act.Role {
	case actor.RoleStudent:
		b.WriteString("5. The query MUST filter rows by the @studentId parameter; the caller may only see their own data.\n")
	case actor.RoleTeacher:
		b.WriteString("5. The query MUST filter rows by the @teacherId parameter; the caller may only see data for their own course assignments.\n")
	case actor.RoleAdmin:
		b.WriteString("5. The caller is an administrator and may query across all rows.\n")
	}

	b.WriteString("\nAVAILABLE TABLES:\n")
	b.WriteString(catalog.PromptBlock())
	return b.String()
}

// historyMessages converts caller-supplied turns into model messages.
func historyMessages(history []agentmodel.Turn) []*schema.Message {
	if len(history) == 0 {
		return nil
	}
	messages := make([]*schema.Message, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case "user":
			messages = append(messages, schema.UserMessage(turn.Content))
		case "assistant":
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		case "system":
			messages = append(messages, schema.SystemMessage(turn.Content))
		}
	}
	return messages
}

// StripCodeFences removes surrounding markdown code-fence markers and an
// optional language tag from a model reply.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.Index(trimmed, "\n"); i >= 0 {
		// Drop the language tag line ("sql", "tsql", ...), if any.
		first := strings.TrimSpace(trimmed[:i])
		if len(first) <= 8 && !strings.ContainsAny(first, " \t") {
			trimmed = trimmed[i+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
