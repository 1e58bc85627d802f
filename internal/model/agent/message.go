// Package agent defines the wire envelope for the agent endpoint.
package agent

// HistoryLimit caps how many caller-supplied turns are handed to any model
// call. History beyond the limit is dropped oldest-first.
const HistoryLimit = 20

// Turn is one prior message of the conversation, supplied by the caller.
type Turn struct {
	Role    string `json:"role"` // user, assistant or system
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/agent/send.
type ChatRequest struct {
	Message   string `json:"message"`
	Confirmed bool   `json:"confirmed"`
	History   []Turn `json:"history"`
}

// ChatResponse is the uniform response envelope for both pipelines.
type ChatResponse struct {
	Success              bool             `json:"success"`
	Message              string           `json:"message"`
	AssistantMessage     string           `json:"assistantMessage,omitempty"`
	RequiresConfirmation bool             `json:"requiresConfirmation"`
	ConfirmationPrompt   string           `json:"confirmationPrompt,omitempty"`
	AuditDecision        string           `json:"auditDecision,omitempty"`
	ProposedSQL          string           `json:"proposedSql,omitempty"`
	RowsPreview          []map[string]any `json:"rowsPreview,omitempty"`
}

// TruncateHistory returns the most recent limit turns. The input slice is
// never mutated; the result aliases its tail.
func TruncateHistory(history []Turn, limit int) []Turn {
	if limit <= 0 {
		limit = HistoryLimit
	}
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
