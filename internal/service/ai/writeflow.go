package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/rollcall-app/rollcall/backend/internal/model/actor"
	agentmodel "github.com/rollcall-app/rollcall/backend/internal/model/agent"
)

const writeFlowSystemPrompt = `You are the attendance assistant for a school.
You handle exactly one kind of task: marking a student's attendance.
Use the mark_attendance tool once you know both the student id and the
status (present, absent or late). If either is missing from the teacher's
message, ask one clarifying question instead of guessing.
Never output SQL. Never perform any other action.`

// writeFlowMaxStep bounds the tool loop: one tool round plus a final reply
// is the expected shape; anything longer indicates a confused model.
const writeFlowMaxStep = 6

// MarkAttendanceFunc commits one attendance status. The production
// implementation lives in the attendance service; the gateway ships a
// logging stub.
type MarkAttendanceFunc func(ctx context.Context, studentID int, status string) error

// WriteFlow drives the confirmed write path: a react agent with exactly one
// invocable action. The single-tool restriction is a safety property, not a
// convenience; do not generalize it.
type WriteFlow struct {
	agent *react.Agent
}

// NewWriteFlow builds the tool-calling session. mark may be nil, in which
// case the stub implementation is used. The model is taken as the composite
// ChatModel interface because the ark provider binds tools through
// BindTools rather than the newer WithTools.
func NewWriteFlow(ctx context.Context, chatModel model.ChatModel, mark MarkAttendanceFunc) (*WriteFlow, error) {
	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		Model: chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: []tool.BaseTool{NewMarkAttendanceTool(mark)},
		},
		MaxStep: writeFlowMaxStep,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create write-flow agent: %w", err)
	}
	return &WriteFlow{agent: agent}, nil
}

// Run executes the confirmed write request and returns the model's final
// natural-language reply. The caller has already verified role and
// confirmation; this method only drives the tool session.
func (f *WriteFlow) Run(ctx context.Context, act actor.Context, message string, history []agentmodel.Turn) (string, error) {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(writeFlowSystemPrompt))
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, schema.UserMessage(message))

	reply, err := f.agent.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to run write-flow agent: %w", err)
	}

	content := strings.TrimSpace(reply.Content)
	if content == "" {
		return "", fmt.Errorf("write-flow agent returned empty reply")
	}
	return content, nil
}
