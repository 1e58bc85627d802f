// Package catalog holds the fixed allowlist of attendance tables exposed to
// the SQL generator and enforced by the auditor. The catalogue is
// hand-maintained; adding a table here widens what generated SQL may touch,
// so keep it in step with the grants of the reporting login.
package catalog

import "strings"

// Table pairs an allowlisted table name with the short description used to
// prompt the generator.
type Table struct {
	Name        string
	Description string
}

var tables = []Table{
	{"Students", "students enrolled at the school (StudentId, UserId, FullName, BatchId)"},
	{"Teachers", "teaching staff (TeacherId, UserId, FullName)"},
	{"Courses", "courses on offer (CourseId, Name, Code)"},
	{"Semesters", "academic semesters (SemesterId, Name, StartDate, EndDate)"},
	{"CourseAssignments", "which teacher teaches which course in which semester (CourseAssignmentId, CourseId, TeacherId, SemesterId)"},
	{"Enrollments", "student enrollment into a course assignment (EnrollmentId, StudentId, CourseAssignmentId)"},
	{"Sessions", "scheduled class meetings (SessionId, CourseAssignmentId, Date, StartTime, EndTime)"},
	{"Attendance", "per-student attendance per session (AttendanceId, SessionId, StudentId, Status, MarkedAt)"},
}

var allowed = func() map[string]struct{} {
	m := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		m[strings.ToLower(t.Name)] = struct{}{}
	}
	return m
}()

// Tables returns the catalogue in declaration order.
func Tables() []Table {
	return tables
}

// Allowed reports whether name (case-insensitive) is an allowlisted table.
func Allowed(name string) bool {
	_, ok := allowed[strings.ToLower(name)]
	return ok
}

// PromptBlock renders the catalogue as one line per table for the
// generator's system prompt.
func PromptBlock() string {
	var b strings.Builder
	for _, t := range tables {
		b.WriteString("- ")
		b.WriteString(t.Name)
		b.WriteString(": ")
		b.WriteString(t.Description)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
