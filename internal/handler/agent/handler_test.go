package agent_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rollcall-app/rollcall/backend/internal/config"
	"github.com/rollcall-app/rollcall/backend/internal/handler"
	"github.com/rollcall-app/rollcall/backend/internal/middleware"
	"github.com/rollcall-app/rollcall/backend/internal/model/actor"
	agentmodel "github.com/rollcall-app/rollcall/backend/internal/model/agent"
	agentservice "github.com/rollcall-app/rollcall/backend/internal/service/agent"
	"github.com/rollcall-app/rollcall/backend/internal/store"
)

type fakeRepo struct {
	studentID int64
	rows      []store.Row
}

func (r *fakeRepo) StudentIDByUserID(context.Context, int64) (int64, error) {
	if r.studentID == 0 {
		return 0, store.ErrNotFound
	}
	return r.studentID, nil
}

func (r *fakeRepo) TeacherIDByUserID(context.Context, int64) (int64, error) {
	return 0, store.ErrNotFound
}

func (r *fakeRepo) QueryRows(context.Context, string, map[string]any) ([]store.Row, error) {
	return r.rows, nil
}

func (r *fakeRepo) RecordAuditEvent(context.Context, store.AuditEvent) error { return nil }
func (r *fakeRepo) Ping(context.Context) error                              { return nil }
func (r *fakeRepo) Close() error                                            { return nil }

type fakeGenerator struct{ sql string }

func (g *fakeGenerator) Generate(context.Context, actor.Context, string, []agentmodel.Turn) (string, error) {
	return g.sql, nil
}

type fakeSummarizer struct{ text string }

func (s *fakeSummarizer) Summarize(context.Context, string, string, []store.Row) (string, error) {
	return s.text, nil
}

type fakeWriteFlow struct{}

func (w *fakeWriteFlow) Run(context.Context, actor.Context, string, []agentmodel.Turn) (string, error) {
	return "done", nil
}

func newTestRouter(repo store.Repository) http.Handler {
	svc := agentservice.NewService(
		repo,
		nil,
		&fakeGenerator{sql: "SELECT TOP (200) * FROM Attendance WHERE StudentId = @studentId"},
		&fakeSummarizer{text: "You were present once."},
		&fakeWriteFlow{},
		config.AgentConfig{RowLimit: 200, HistoryLimit: 20, PreviewLimit: 20},
	)
	return handler.NewRouter(svc, repo, []string{"*"})
}

func postSend(t *testing.T, router http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/agent/send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSendWithoutClaimsIsUnauthorized(t *testing.T) {
	router := newTestRouter(&fakeRepo{studentID: 7})

	rec := postSend(t, router, `{"message":"show my attendance"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var resp agentmodel.ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if resp.Success {
		t.Fatal("unauthenticated response must not be a success")
	}
}

func TestSendAsStudentReturnsChatEnvelope(t *testing.T) {
	router := newTestRouter(&fakeRepo{
		studentID: 7,
		rows:      []store.Row{{"Date": "2026-08-01", "Status": "present"}},
	})

	rec := postSend(t, router, `{"message":"show my attendance"}`, map[string]string{
		middleware.UserIDHeader: "42",
		middleware.RolesHeader:  "Student",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp agentmodel.ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got: %s", resp.Message)
	}
	if resp.AuditDecision != "SAFE" {
		t.Fatalf("expected SAFE decision, got %q", resp.AuditDecision)
	}
	if resp.AssistantMessage != "You were present once." {
		t.Fatalf("unexpected assistant message: %q", resp.AssistantMessage)
	}
	if len(resp.RowsPreview) != 1 {
		t.Fatalf("expected one preview row, got %d", len(resp.RowsPreview))
	}
}

func TestSendInvalidBodyIsBadRequest(t *testing.T) {
	router := newTestRouter(&fakeRepo{studentID: 7})

	rec := postSend(t, router, `{"message":`, map[string]string{
		middleware.UserIDHeader: "42",
		middleware.RolesHeader:  "student",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSendWithoutConfiguredModelIsUnavailable(t *testing.T) {
	router := handler.NewRouter(nil, &fakeRepo{}, []string{"*"})

	rec := postSend(t, router, `{"message":"hi"}`, map[string]string{
		middleware.UserIDHeader: "42",
		middleware.RolesHeader:  "student",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&fakeRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}
