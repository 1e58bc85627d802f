// Package agent orchestrates the hybrid attendance agent: it resolves the
// actor, classifies intent, and drives either the generate-audit-execute
// read pipeline or the confirm-then-tool write pipeline.
package agent

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rollcall-app/rollcall/backend/internal/audit"
	"github.com/rollcall-app/rollcall/backend/internal/config"
	"github.com/rollcall-app/rollcall/backend/internal/intent"
	"github.com/rollcall-app/rollcall/backend/internal/model/actor"
	agentmodel "github.com/rollcall-app/rollcall/backend/internal/model/agent"
	"github.com/rollcall-app/rollcall/backend/internal/observability"
	"github.com/rollcall-app/rollcall/backend/internal/store"
)

// SQLGenerator produces one candidate SQL statement for a read request.
type SQLGenerator interface {
	Generate(ctx context.Context, act actor.Context, message string, history []agentmodel.Turn) (string, error)
}

// Summarizer turns a row preview into advisory natural-language text.
type Summarizer interface {
	Summarize(ctx context.Context, question, sqlText string, rows []store.Row) (string, error)
}

// WriteFlow runs the confirmed tool-calling write session.
type WriteFlow interface {
	Run(ctx context.Context, act actor.Context, message string, history []agentmodel.Turn) (string, error)
}

// Service is the chat orchestrator behind POST /api/agent/send.
type Service struct {
	repo       store.Repository
	validator  audit.Validator
	generator  SQLGenerator
	summarizer Summarizer
	writeFlow  WriteFlow
	cfg        config.AgentConfig
}

// NewService wires the orchestrator. The validator defaults to the textual
// auditor when nil.
func NewService(repo store.Repository, validator audit.Validator, generator SQLGenerator, summarizer Summarizer, writeFlow WriteFlow, cfg config.AgentConfig) *Service {
	if validator == nil {
		validator = audit.TextValidator{}
	}
	return &Service{
		repo:       repo,
		validator:  validator,
		generator:  generator,
		summarizer: summarizer,
		writeFlow:  writeFlow,
		cfg:        cfg,
	}
}

// HandleMessage processes one chat request end to end and always returns a
// well-formed envelope; internal faults are logged, never leaked.
func (s *Service) HandleMessage(ctx context.Context, claims actor.Claims, req agentmodel.ChatRequest) agentmodel.ChatResponse {
	start := time.Now()
	kind := intent.Read

	finish := func(outcome string, resp agentmodel.ChatResponse) agentmodel.ChatResponse {
		observability.ObserveAgentRequest(kind.String(), outcome, time.Since(start).Seconds())
		return resp
	}

	if !claims.Authenticated() {
		return finish("unauthenticated", fail("You must be signed in to use the assistant."))
	}
	if strings.TrimSpace(req.Message) == "" {
		return finish("input_error", fail("Message must not be empty."))
	}

	act, err := s.resolveActor(ctx, claims)
	if err != nil {
		log.Printf("[agent] actor resolution failed for user=%d: %v", claims.UserID, err)
		return finish("resolve_error", fail("Unable to resolve your identity. Please try again."))
	}

	history := agentmodel.TruncateHistory(req.History, s.cfg.HistoryLimit)
	kind = intent.Classify(req.Message)

	if kind == intent.Write {
		return finish(s.handleWrite(ctx, act, req, history))
	}
	return finish(s.handleRead(ctx, act, req.Message, history))
}

func (s *Service) handleRead(ctx context.Context, act actor.Context, message string, history []agentmodel.Turn) (string, agentmodel.ChatResponse) {
	sqlText, err := s.generator.Generate(ctx, act, message, history)
	if err != nil {
		log.Printf("[agent] sql generation failed: %v", err)
		observability.ObserveLLMFailure("generate")
		return "generation_error", fail("SQL generation failed.")
	}

	verdict := s.validator.Evaluate(sqlText, act, s.cfg.RowLimit)
	observability.ObserveAuditVerdict(verdict.Decision)
	s.recordAudit(ctx, act, intent.Read, verdict.Decision, verdict.NormalizedSQL, verdict.Issues)

	if !verdict.Approved {
		// A denial is an expected outcome, not a system failure: the
		// auditor's reasoning is part of the product surface.
		return "audit_denied", agentmodel.ChatResponse{
			Success:       true,
			Message:       verdict.UserMessage,
			AuditDecision: verdict.Decision,
			ProposedSQL:   verdict.NormalizedSQL,
		}
	}

	rows, err := s.repo.QueryRows(ctx, verdict.NormalizedSQL, verdict.Parameters)
	if err != nil {
		log.Printf("[agent] approved query failed: %v", err)
		return "execution_error", fail("AI read flow failed.")
	}

	preview := rows
	if len(preview) > s.cfg.PreviewLimit {
		preview = preview[:s.cfg.PreviewLimit]
	}
	rowsPreview := make([]map[string]any, len(preview))
	for i, row := range preview {
		rowsPreview[i] = row
	}

	summary := ""
	if s.summarizer != nil {
		summary, err = s.summarizer.Summarize(ctx, message, verdict.NormalizedSQL, preview)
		if err != nil {
			// Advisory only: the rows were produced safely, so a failed
			// summary degrades to a plain message.
			log.Printf("[agent] summarization failed: %v", err)
			observability.ObserveLLMFailure("summarize")
			summary = ""
		}
	}

	return "ok", agentmodel.ChatResponse{
		Success:          true,
		Message:          "Query executed.",
		AssistantMessage: summary,
		AuditDecision:    verdict.Decision,
		ProposedSQL:      verdict.NormalizedSQL,
		RowsPreview:      rowsPreview,
	}
}

func (s *Service) handleWrite(ctx context.Context, act actor.Context, req agentmodel.ChatRequest, history []agentmodel.Turn) (string, agentmodel.ChatResponse) {
	if act.Role != actor.RoleTeacher {
		return "unauthorized", fail("Only teachers can mark attendance.")
	}

	if !req.Confirmed {
		return "needs_confirmation", agentmodel.ChatResponse{
			Success:              true,
			Message:              "Confirmation required before any attendance change.",
			RequiresConfirmation: true,
			ConfirmationPrompt:   "This looks like an attendance change: \"" + req.Message + "\". Send again with confirmed=true to proceed.",
		}
	}

	// The attempt goes on the trail before the flow runs, so a crashed or
	// failed tool session still leaves a record.
	s.recordAudit(ctx, act, intent.Write, "WRITE", req.Message, nil)

	reply, err := s.writeFlow.Run(ctx, act, req.Message, history)
	if err != nil {
		log.Printf("[agent] write flow failed: %v", err)
		observability.ObserveLLMFailure("write")
		return "write_error", fail("AI write flow failed.")
	}

	return "ok", agentmodel.ChatResponse{
		Success:          true,
		Message:          "Attendance action completed.",
		AssistantMessage: reply,
	}
}

// resolveActor maps claims to the single driving role. Admin wins over
// teacher wins over student. A missing scoping row is not an error here;
// the auditor turns it into a denial.
func (s *Service) resolveActor(ctx context.Context, claims actor.Claims) (actor.Context, error) {
	switch {
	case claims.HasRole("admin"):
		return actor.Admin(claims.UserID), nil
	case claims.HasRole("teacher"):
		teacherID, err := s.repo.TeacherIDByUserID(ctx, claims.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return actor.Context{}, err
		}
		return actor.Teacher(claims.UserID, teacherID), nil
	case claims.HasRole("student"):
		studentID, err := s.repo.StudentIDByUserID(ctx, claims.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return actor.Context{}, err
		}
		return actor.Student(claims.UserID, studentID), nil
	default:
		return actor.Context{Authenticated: true, UserID: claims.UserID}, nil
	}
}

func (s *Service) recordAudit(ctx context.Context, act actor.Context, kind intent.Kind, decision, proposedSQL string, issues []string) {
	event := store.AuditEvent{
		ID:          uuid.NewString(),
		UserID:      act.UserID,
		Role:        act.Role.String(),
		Intent:      kind.String(),
		Decision:    decision,
		ProposedSQL: proposedSQL,
		Issues:      issues,
	}
	if err := s.repo.RecordAuditEvent(ctx, event); err != nil {
		log.Printf("[agent] audit trail write failed: %v", err)
	}
}

func fail(message string) agentmodel.ChatResponse {
	return agentmodel.ChatResponse{Success: false, Message: message}
}
