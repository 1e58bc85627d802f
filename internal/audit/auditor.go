// Package audit is the safety boundary between model-generated SQL and the
// database. Evaluate is pure and total: it never does I/O, never panics on
// any input, and fails closed on ambiguity. Nothing reaches the executor
// without an approved verdict from here.
package audit

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rollcall-app/rollcall/backend/internal/catalog"
	"github.com/rollcall-app/rollcall/backend/internal/model/actor"
)

// Decision values surfaced in the response envelope.
const (
	DecisionSafe    = "SAFE"
	DecisionNotSafe = "NOT_SAFE"
)

// DefaultRowLimit is the row cap the generator is instructed to emit.
const DefaultRowLimit = 200

// Verdict is the auditor's ruling on one candidate statement. On denial,
// NormalizedSQL still carries the rejected text for display, never for
// execution.
type Verdict struct {
	Approved      bool
	Decision      string
	NormalizedSQL string
	Parameters    map[string]any
	Issues        []string
	UserMessage   string
}

// Validator is the swappable audit contract, so a parser/AST-based
// implementation can replace the textual one without touching callers.
type Validator interface {
	Evaluate(sqlText string, act actor.Context, rowLimit int) Verdict
}

// TextValidator implements Validator with conservative textual rules.
type TextValidator struct{}

// Evaluate applies the textual rule set via the package-level function.
func (TextValidator) Evaluate(sqlText string, act actor.Context, rowLimit int) Verdict {
	return Evaluate(sqlText, act, rowLimit)
}

var (
	forbiddenVerbRe = regexp.MustCompile(`(?i)\b(update|delete|insert|merge|drop|alter|create|truncate|exec|execute)\b`)
	shapeRe         = regexp.MustCompile(`(?i)^(select|with)\b`)
	rowCapRe        = regexp.MustCompile(`(?i)\btop(\s*\(\s*\d+\s*\)|\s+\d+\b)`)
	// Identifier after FROM or JOIN. The character class excludes "(" so a
	// derived table contributes no token of its own.
	tableTokenRe = regexp.MustCompile(`(?i)\b(?:from|join)\s+([A-Za-z0-9_.\[\]"` + "`" + `@#]+)`)
	// Names the statement itself defines, i.e. CTE names. References to
	// these are not catalogue tables.
	definedNameRe = regexp.MustCompile(`(?i)\b([A-Za-z0-9_]+)\s+as\s*\(`)
)

// Evaluate audits one candidate SQL statement for the given actor. All
// rules are checked and every violation accumulates into Issues, so the
// caller can surface the complete list rather than the first failure.
func Evaluate(sqlText string, act actor.Context, rowLimit int) Verdict {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}

	normalized := strings.TrimSpace(sqlText)
	var issues []string

	// Semicolon discipline: exactly one, trailing, is stripped; anything
	// else means more than one statement.
	if n := strings.Count(normalized, ";"); n > 0 {
		if n == 1 && strings.HasSuffix(normalized, ";") {
			normalized = strings.TrimSpace(strings.TrimSuffix(normalized, ";"))
		} else {
			issues = append(issues, "multiple statements are not allowed")
		}
	}

	if normalized == "" {
		issues = append(issues, "statement is empty")
		return deny(normalized, issues)
	}

	seenVerbs := map[string]struct{}{}
	for _, m := range forbiddenVerbRe.FindAllStringSubmatch(normalized, -1) {
		verb := strings.ToLower(m[1])
		if _, dup := seenVerbs[verb]; dup {
			continue
		}
		seenVerbs[verb] = struct{}{}
		issues = append(issues, fmt.Sprintf("forbidden keyword %q", verb))
	}

	if !shapeRe.MatchString(normalized) {
		issues = append(issues, "statement must begin with SELECT or WITH")
	}

	if !rowCapRe.MatchString(normalized) {
		issues = append(issues, fmt.Sprintf("statement must include a TOP (%d) row cap", rowLimit))
	}

	defined := map[string]struct{}{}
	for _, m := range definedNameRe.FindAllStringSubmatch(normalized, -1) {
		defined[strings.ToLower(m[1])] = struct{}{}
	}

	seenTables := map[string]struct{}{}
	for _, m := range tableTokenRe.FindAllStringSubmatch(normalized, -1) {
		name := cleanTableToken(m[1])
		if name == "" || catalog.Allowed(name) {
			continue
		}
		if _, isDefined := defined[name]; isDefined {
			continue
		}
		if _, dup := seenTables[name]; dup {
			continue
		}
		seenTables[name] = struct{}{}
		issues = append(issues, fmt.Sprintf("table %q is not allowed", name))
	}

	params := map[string]any{}
	lower := strings.ToLower(normalized)
	switch act.Role {
	case actor.RoleStudent:
		if act.StudentID == 0 {
			issues = append(issues, "cannot resolve student identity")
		} else if !strings.Contains(lower, "@studentid") {
			issues = append(issues, "missing required filter @studentId")
		} else {
			params["@studentId"] = act.StudentID
		}
	case actor.RoleTeacher:
		if act.TeacherID == 0 {
			issues = append(issues, "cannot resolve teacher identity")
		} else if !strings.Contains(lower, "@teacherid") {
			issues = append(issues, "missing required filter @teacherId")
		} else {
			params["@teacherId"] = act.TeacherID
		}
	case actor.RoleAdmin:
		// Admins are intentionally unscoped at this layer.
	default:
		issues = append(issues, "unauthenticated actor")
	}

	if len(issues) > 0 {
		return deny(normalized, issues)
	}

	return Verdict{
		Approved:      true,
		Decision:      DecisionSafe,
		NormalizedSQL: normalized,
		Parameters:    params,
		UserMessage:   "query approved",
	}
}

func deny(normalized string, issues []string) Verdict {
	var b strings.Builder
	b.WriteString("The generated query was rejected:\n")
	for _, issue := range issues {
		b.WriteString("- ")
		b.WriteString(issue)
		b.WriteString("\n")
	}
	return Verdict{
		Approved:      false,
		Decision:      DecisionNotSafe,
		NormalizedSQL: normalized,
		Parameters:    map[string]any{},
		Issues:        issues,
		UserMessage:   strings.TrimRight(b.String(), "\n"),
	}
}

// cleanTableToken strips schema qualifiers and bracket/quote characters
// from an identifier captured after FROM/JOIN.
func cleanTableToken(token string) string {
	token = strings.Trim(token, `[]"` + "`")
	if i := strings.LastIndex(token, "."); i >= 0 {
		token = token[i+1:]
	}
	token = strings.Trim(token, `[]"` + "`")
	return strings.ToLower(strings.TrimSpace(token))
}
