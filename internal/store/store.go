// Package store provides persistence for the agent gateway: scoping-id
// lookups, read-only execution of audited SQL, and the local audit trail.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals a lookup that matched no row.
var ErrNotFound = errors.New("store: not found")

// Row is one materialized result row, column name to nullable scalar.
type Row map[string]any

// AuditEvent is one audit-trail entry. Events are best-effort bookkeeping:
// a failed insert must never fail the request that produced it.
type AuditEvent struct {
	ID          string
	UserID      int64
	Role        string
	Intent      string
	Decision    string
	ProposedSQL string
	Issues      []string
	CreatedAt   time.Time
}

// Repository is the persistence contract consumed by the orchestrator.
type Repository interface {
	// StudentIDByUserID resolves the student scoping id for a user.
	StudentIDByUserID(ctx context.Context, userID int64) (int64, error)
	// TeacherIDByUserID resolves the teacher scoping id for a user.
	TeacherIDByUserID(ctx context.Context, userID int64) (int64, error)
	// QueryRows executes an audited, parameterized, read-only statement
	// and materializes every row. Parameters are named with a leading "@".
	QueryRows(ctx context.Context, sqlText string, params map[string]any) ([]Row, error)
	// RecordAuditEvent appends one entry to the audit trail.
	RecordAuditEvent(ctx context.Context, event AuditEvent) error
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	// Close releases the underlying pool.
	Close() error
}
