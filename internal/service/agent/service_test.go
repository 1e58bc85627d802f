package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rollcall-app/rollcall/backend/internal/config"
	"github.com/rollcall-app/rollcall/backend/internal/model/actor"
	agentmodel "github.com/rollcall-app/rollcall/backend/internal/model/agent"
	"github.com/rollcall-app/rollcall/backend/internal/store"
)

type stubRepo struct {
	teacherID int64
	studentID int64
	rows      []store.Row
	queryErr  error

	gotSQL    string
	gotParams map[string]any
	queried   bool
	events    []store.AuditEvent
}

func (r *stubRepo) StudentIDByUserID(context.Context, int64) (int64, error) {
	if r.studentID == 0 {
		return 0, store.ErrNotFound
	}
	return r.studentID, nil
}

func (r *stubRepo) TeacherIDByUserID(context.Context, int64) (int64, error) {
	if r.teacherID == 0 {
		return 0, store.ErrNotFound
	}
	return r.teacherID, nil
}

func (r *stubRepo) QueryRows(_ context.Context, sqlText string, params map[string]any) ([]store.Row, error) {
	r.queried = true
	r.gotSQL = sqlText
	r.gotParams = params
	return r.rows, r.queryErr
}

func (r *stubRepo) RecordAuditEvent(_ context.Context, event store.AuditEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *stubRepo) Ping(context.Context) error { return nil }
func (r *stubRepo) Close() error               { return nil }

type stubGenerator struct {
	sql string
	err error
}

func (g *stubGenerator) Generate(context.Context, actor.Context, string, []agentmodel.Turn) (string, error) {
	return g.sql, g.err
}

type stubSummarizer struct {
	text string
	err  error
}

func (s *stubSummarizer) Summarize(context.Context, string, string, []store.Row) (string, error) {
	return s.text, s.err
}

type stubWriteFlow struct {
	reply  string
	err    error
	called bool
}

func (w *stubWriteFlow) Run(context.Context, actor.Context, string, []agentmodel.Turn) (string, error) {
	w.called = true
	return w.reply, w.err
}

func testConfig() config.AgentConfig {
	return config.AgentConfig{RowLimit: 200, HistoryLimit: 20, PreviewLimit: 20}
}

func studentClaims() actor.Claims { return actor.Claims{UserID: 42, Roles: []string{"student"}} }
func teacherClaims() actor.Claims { return actor.Claims{UserID: 43, Roles: []string{"teacher"}} }

func TestHandleMessageStudentReadBindsOwnID(t *testing.T) {
	repo := &stubRepo{
		studentID: 7,
		rows:      []store.Row{{"Date": "2026-08-01", "Status": "present"}},
	}
	gen := &stubGenerator{sql: "SELECT TOP (200) * FROM Attendance WHERE StudentId = @studentId"}
	svc := NewService(repo, nil, gen, &stubSummarizer{text: "One session, present."}, &stubWriteFlow{}, testConfig())

	resp := svc.HandleMessage(context.Background(), studentClaims(), agentmodel.ChatRequest{
		Message: "show my attendance this month",
	})

	if !resp.Success {
		t.Fatalf("expected success, got: %s", resp.Message)
	}
	if resp.AuditDecision != "SAFE" {
		t.Fatalf("expected SAFE, got %s", resp.AuditDecision)
	}
	if got := repo.gotParams["@studentId"]; got != int64(7) {
		t.Fatalf("expected @studentId=7 bound, got %v", got)
	}
	if len(resp.RowsPreview) != 1 {
		t.Fatalf("expected one preview row, got %d", len(resp.RowsPreview))
	}
	if resp.AssistantMessage != "One session, present." {
		t.Fatalf("unexpected assistant message: %q", resp.AssistantMessage)
	}
	if len(repo.events) != 1 || repo.events[0].Decision != "SAFE" {
		t.Fatalf("expected one SAFE audit event, got %+v", repo.events)
	}
}

func TestHandleMessageAuditDenialIsNotAFailure(t *testing.T) {
	repo := &stubRepo{studentID: 7}
	gen := &stubGenerator{sql: "UPDATE Attendance SET Status='Present'"}
	svc := NewService(repo, nil, gen, &stubSummarizer{}, &stubWriteFlow{}, testConfig())

	resp := svc.HandleMessage(context.Background(), studentClaims(), agentmodel.ChatRequest{
		Message: "show my attendance",
	})

	if !resp.Success {
		t.Fatal("a denial is an expected outcome, not a system failure")
	}
	if resp.AuditDecision != "NOT_SAFE" {
		t.Fatalf("expected NOT_SAFE, got %s", resp.AuditDecision)
	}
	if resp.ProposedSQL == "" {
		t.Fatal("denied response must carry the rejected SQL for transparency")
	}
	if repo.queried {
		t.Fatal("denied SQL must never reach the executor")
	}
	if !strings.Contains(resp.Message, "-") {
		t.Fatalf("expected bulleted reasoning, got %q", resp.Message)
	}
}

func TestHandleMessageWriteRequiresConfirmation(t *testing.T) {
	repo := &stubRepo{teacherID: 11}
	write := &stubWriteFlow{reply: "done"}
	svc := NewService(repo, nil, &stubGenerator{}, &stubSummarizer{}, write, testConfig())

	resp := svc.HandleMessage(context.Background(), teacherClaims(), agentmodel.ChatRequest{
		Message:   "mark student 12 present",
		Confirmed: false,
	})

	if !resp.RequiresConfirmation {
		t.Fatal("expected confirmation gate")
	}
	if resp.ConfirmationPrompt == "" {
		t.Fatal("expected a confirmation prompt")
	}
	if write.called {
		t.Fatal("write flow must not run before confirmation")
	}
	if repo.queried {
		t.Fatal("no DB query may happen on the unconfirmed write path")
	}
}

func TestHandleMessageConfirmedWriteRunsToolFlow(t *testing.T) {
	repo := &stubRepo{teacherID: 11}
	write := &stubWriteFlow{reply: "Marked student 12 as present."}
	svc := NewService(repo, nil, &stubGenerator{}, &stubSummarizer{}, write, testConfig())

	resp := svc.HandleMessage(context.Background(), teacherClaims(), agentmodel.ChatRequest{
		Message:   "mark student 12 present",
		Confirmed: true,
	})

	if !resp.Success || !write.called {
		t.Fatalf("expected write flow to run, got: %+v", resp)
	}
	if resp.AssistantMessage != "Marked student 12 as present." {
		t.Fatalf("unexpected assistant message: %q", resp.AssistantMessage)
	}
	if len(repo.events) != 1 || repo.events[0].Intent != "write" {
		t.Fatalf("expected one write audit event, got %+v", repo.events)
	}
}

func TestHandleMessageWriteFlowErrorIsStillAudited(t *testing.T) {
	repo := &stubRepo{teacherID: 11}
	write := &stubWriteFlow{err: errors.New("model timeout")}
	svc := NewService(repo, nil, &stubGenerator{}, &stubSummarizer{}, write, testConfig())

	resp := svc.HandleMessage(context.Background(), teacherClaims(), agentmodel.ChatRequest{
		Message:   "mark student 12 present",
		Confirmed: true,
	})

	if resp.Success {
		t.Fatal("expected failure when the write flow errors")
	}
	if len(repo.events) != 1 || repo.events[0].Intent != "write" {
		t.Fatalf("confirmed write attempt must be audited even on failure, got %+v", repo.events)
	}
}

func TestHandleMessageWriteDeniedForNonTeachers(t *testing.T) {
	repo := &stubRepo{studentID: 7}
	write := &stubWriteFlow{}
	svc := NewService(repo, nil, &stubGenerator{}, &stubSummarizer{}, write, testConfig())

	resp := svc.HandleMessage(context.Background(), studentClaims(), agentmodel.ChatRequest{
		Message:   "mark student 12 present",
		Confirmed: true,
	})

	if resp.Success {
		t.Fatal("expected authorization failure")
	}
	if write.called {
		t.Fatal("write flow must not run for non-teachers")
	}
}

func TestHandleMessageUnauthenticated(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, &stubGenerator{}, &stubSummarizer{}, &stubWriteFlow{}, testConfig())
	resp := svc.HandleMessage(context.Background(), actor.Claims{}, agentmodel.ChatRequest{Message: "hi"})
	if resp.Success {
		t.Fatal("expected failure for unauthenticated caller")
	}
}

func TestHandleMessageBlankMessage(t *testing.T) {
	repo := &stubRepo{studentID: 7}
	gen := &stubGenerator{sql: "SELECT 1"}
	svc := NewService(repo, nil, gen, &stubSummarizer{}, &stubWriteFlow{}, testConfig())

	resp := svc.HandleMessage(context.Background(), studentClaims(), agentmodel.ChatRequest{Message: "   "})
	if resp.Success {
		t.Fatal("expected failure for blank message")
	}
	if repo.queried {
		t.Fatal("no DB call may happen for a blank message")
	}
}

func TestHandleMessageGenerationFailure(t *testing.T) {
	repo := &stubRepo{studentID: 7}
	gen := &stubGenerator{err: errors.New("provider exploded with credentials abc123")}
	svc := NewService(repo, nil, gen, &stubSummarizer{}, &stubWriteFlow{}, testConfig())

	resp := svc.HandleMessage(context.Background(), studentClaims(), agentmodel.ChatRequest{Message: "show my attendance"})
	if resp.Success {
		t.Fatal("expected failure")
	}
	if strings.Contains(resp.Message, "abc123") {
		t.Fatal("provider error detail must never leak to the caller")
	}
}

func TestHandleMessageExecutionFailure(t *testing.T) {
	repo := &stubRepo{studentID: 7, queryErr: errors.New("disk on fire at /var/db")}
	gen := &stubGenerator{sql: "SELECT TOP (200) * FROM Attendance WHERE StudentId = @studentId"}
	svc := NewService(repo, nil, gen, &stubSummarizer{}, &stubWriteFlow{}, testConfig())

	resp := svc.HandleMessage(context.Background(), studentClaims(), agentmodel.ChatRequest{Message: "show my attendance"})
	if resp.Success {
		t.Fatal("expected failure")
	}
	if strings.Contains(resp.Message, "/var/db") {
		t.Fatal("execution error detail must never leak to the caller")
	}
}

func TestHandleMessageSummarizerFailureIsNonFatal(t *testing.T) {
	repo := &stubRepo{
		studentID: 7,
		rows:      []store.Row{{"Status": "present"}},
	}
	gen := &stubGenerator{sql: "SELECT TOP (200) * FROM Attendance WHERE StudentId = @studentId"}
	svc := NewService(repo, nil, gen, &stubSummarizer{err: errors.New("model timeout")}, &stubWriteFlow{}, testConfig())

	resp := svc.HandleMessage(context.Background(), studentClaims(), agentmodel.ChatRequest{Message: "show my attendance"})
	if !resp.Success {
		t.Fatalf("summary failure must not fail the request: %s", resp.Message)
	}
	if len(resp.RowsPreview) != 1 {
		t.Fatal("rows must still be returned without a summary")
	}
}

func TestHandleMessagePreviewCapped(t *testing.T) {
	rows := make([]store.Row, 35)
	for i := range rows {
		rows[i] = store.Row{"N": i}
	}
	repo := &stubRepo{studentID: 7, rows: rows}
	gen := &stubGenerator{sql: "SELECT TOP (200) * FROM Attendance WHERE StudentId = @studentId"}
	svc := NewService(repo, nil, gen, &stubSummarizer{text: "ok"}, &stubWriteFlow{}, testConfig())

	resp := svc.HandleMessage(context.Background(), studentClaims(), agentmodel.ChatRequest{Message: "show my attendance"})
	if len(resp.RowsPreview) != 20 {
		t.Fatalf("expected preview capped at 20 rows, got %d", len(resp.RowsPreview))
	}
}
