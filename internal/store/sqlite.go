package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository on SQLite. SQLite accepts the same
// @name parameter spelling the auditor binds, so audited statements run
// unchanged against a local database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and if necessary bootstraps) a SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an already-open pool. Used by tests and by deployments
// that point the gateway at an existing attendance database.
func NewWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS Students (
		StudentId INTEGER PRIMARY KEY AUTOINCREMENT,
		UserId INTEGER NOT NULL UNIQUE,
		FullName TEXT NOT NULL,
		BatchId INTEGER
	);
	CREATE TABLE IF NOT EXISTS Teachers (
		TeacherId INTEGER PRIMARY KEY AUTOINCREMENT,
		UserId INTEGER NOT NULL UNIQUE,
		FullName TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS Courses (
		CourseId INTEGER PRIMARY KEY AUTOINCREMENT,
		Name TEXT NOT NULL,
		Code TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS Semesters (
		SemesterId INTEGER PRIMARY KEY AUTOINCREMENT,
		Name TEXT NOT NULL,
		StartDate TEXT NOT NULL,
		EndDate TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS CourseAssignments (
		CourseAssignmentId INTEGER PRIMARY KEY AUTOINCREMENT,
		CourseId INTEGER NOT NULL,
		TeacherId INTEGER NOT NULL,
		SemesterId INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS Enrollments (
		EnrollmentId INTEGER PRIMARY KEY AUTOINCREMENT,
		StudentId INTEGER NOT NULL,
		CourseAssignmentId INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS Sessions (
		SessionId INTEGER PRIMARY KEY AUTOINCREMENT,
		CourseAssignmentId INTEGER NOT NULL,
		Date TEXT NOT NULL,
		StartTime TEXT,
		EndTime TEXT
	);
	CREATE TABLE IF NOT EXISTS Attendance (
		AttendanceId INTEGER PRIMARY KEY AUTOINCREMENT,
		SessionId INTEGER NOT NULL,
		StudentId INTEGER NOT NULL,
		Status TEXT NOT NULL,
		MarkedAt TEXT
	);
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		intent TEXT NOT NULL,
		decision TEXT NOT NULL,
		proposed_sql TEXT,
		issues TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// StudentIDByUserID resolves the student scoping id for a user id.
func (s *SQLiteStore) StudentIDByUserID(ctx context.Context, userID int64) (int64, error) {
	return s.scopeID(ctx, `SELECT StudentId FROM Students WHERE UserId = @userId`, userID)
}

// TeacherIDByUserID resolves the teacher scoping id for a user id.
func (s *SQLiteStore) TeacherIDByUserID(ctx context.Context, userID int64) (int64, error) {
	return s.scopeID(ctx, `SELECT TeacherId FROM Teachers WHERE UserId = @userId`, userID)
}

func (s *SQLiteStore) scopeID(ctx context.Context, query string, userID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, query, sql.Named("userId", userID)).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("scope lookup: %w", err)
	}
	return id, nil
}

var (
	topCapRe = regexp.MustCompile(`(?i)\bselect\s+top\s*(?:\(\s*(\d+)\s*\)|(\d+)\b)`)
	limitRe  = regexp.MustCompile(`(?i)\blimit\b`)
)

// translateRowCap rewrites the T-SQL TOP cap into the LIMIT clause SQLite
// understands. Every SELECT TOP loses its TOP token and the first cap value
// is re-applied as a trailing LIMIT, so the row-cap guarantee holds for the
// statement as a whole even when the TOP sat inside a CTE.
func translateRowCap(sqlText string) string {
	capValue := ""
	out := topCapRe.ReplaceAllStringFunc(sqlText, func(match string) string {
		sub := topCapRe.FindStringSubmatch(match)
		if capValue == "" {
			if sub[1] != "" {
				capValue = sub[1]
			} else {
				capValue = sub[2]
			}
		}
		return "SELECT"
	})
	if capValue == "" {
		return sqlText
	}
	if limitRe.MatchString(out) {
		return out
	}
	return strings.TrimSpace(out) + " LIMIT " + capValue
}

// QueryRows executes an approved read-only statement with named parameters
// and materializes each row into a name-to-value map. The column set is
// whatever the SELECT list produced. The statement arrives in the dialect
// the generator is prompted for; only its row cap needs translation here.
func (s *SQLiteStore) QueryRows(ctx context.Context, sqlText string, params map[string]any) ([]Row, error) {
	args := make([]any, 0, len(params))
	for name, value := range params {
		args = append(args, sql.Named(strings.TrimPrefix(name, "@"), value))
	}

	rows, err := s.db.QueryContext(ctx, translateRowCap(sqlText), args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// RecordAuditEvent appends one entry to the audit trail.
func (s *SQLiteStore) RecordAuditEvent(ctx context.Context, event AuditEvent) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, user_id, role, intent, decision, proposed_sql, issues, created_at)
		 VALUES (@id, @userId, @role, @intent, @decision, @proposedSql, @issues, @createdAt)`,
		sql.Named("id", event.ID),
		sql.Named("userId", event.UserID),
		sql.Named("role", event.Role),
		sql.Named("intent", event.Intent),
		sql.Named("decision", event.Decision),
		sql.Named("proposedSql", event.ProposedSQL),
		sql.Named("issues", strings.Join(event.Issues, "\n")),
		sql.Named("createdAt", createdAt.Unix()),
	)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}
