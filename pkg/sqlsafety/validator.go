// Package sqlsafety is the gate between arbitrary SQL text (LLM-generated
// or user-edited) and a live database. It parses to an AST, rejects
// anything that is not a SELECT, enforces row caps by rewriting, and
// derives runtime limits from query complexity. Keyword matching is never
// used for the read-only decision: comments, casing, and string literals
// defeat substring checks, the AST does not.
package sqlsafety

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/parser/ast"
	_ "github.com/pingcap/tidb/parser/test_driver"

	"github.com/quill-data/quill-engine/pkg/models"
)

// Complexity buckets a statement for timeout derivation.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Options bound a single validation pass.
type Options struct {
	// MaxRows caps result size; statements without a LIMIT (or with a
	// larger one) are rewritten.
	MaxRows int
	// TimeoutSeconds is the baseline execution timeout; the recommended
	// timeout only ever scales down from it.
	TimeoutSeconds int
}

// DefaultOptions matches the orchestrator's fixed execution policy.
func DefaultOptions() Options {
	return Options{MaxRows: 1000, TimeoutSeconds: 30}
}

// minTimeoutSeconds is the floor under complexity scaling.
const minTimeoutSeconds = 5

// maxSubqueryDepth is the warning threshold for nesting.
const maxSubqueryDepth = 3

// ValidationResult is the immutable outcome of one validation pass.
// SQL holds the execution-ready text, rewritten when a row cap was
// applied; LimitApplied records that rewrite for user disclosure.
type ValidationResult struct {
	Valid                     bool       `json:"valid"`
	Errors                    []string   `json:"errors"`
	Warnings                  []string   `json:"warnings"`
	Tables                    []string   `json:"tables"`
	Columns                   []string   `json:"columns"`
	SQL                       string     `json:"sql"`
	LimitApplied              bool       `json:"limit_applied"`
	RecommendedTimeoutSeconds int        `json:"recommended_timeout_seconds"`
	Complexity                Complexity `json:"complexity"`
}

// Validate parses and inspects sqlText for the given dialect. It never
// panics on malformed input: parse failures come back as Valid=false
// with an error string.
func Validate(sqlText string, dbType models.DBType, opts Options) ValidationResult {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultOptions().MaxRows
	}
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = DefaultOptions().TimeoutSeconds
	}

	result := ValidationResult{
		SQL:                       sqlText,
		Complexity:                ComplexityLow,
		RecommendedTimeoutSeconds: opts.TimeoutSeconds,
	}

	normalized := normalize(sqlText)
	if normalized == "" {
		result.Errors = append(result.Errors, "SQL query is empty")
		return result
	}

	if !dbType.Valid() {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("unknown database type %q; validated with ANSI defaults", dbType))
	}

	stmts, _, err := newParser(dbType).Parse(normalized, "", "")
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("syntax error: %v", err))
		return result
	}
	if len(stmts) == 0 {
		result.Errors = append(result.Errors, "SQL query is empty")
		return result
	}

	// The SELECT-only gate runs over every statement so that a blocked
	// statement is reported even when smuggled behind a valid one.
	for _, stmt := range stmts {
		if !isSelect(stmt) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Only SELECT queries allowed (found: %s)", stmtKind(stmt)))
		}
	}
	if len(result.Errors) > 0 {
		return result
	}

	if len(stmts) > 1 {
		result.Errors = append(result.Errors, "multiple SQL statements not allowed")
		return result
	}

	stmt := stmts[0]
	a := analyze(stmt)

	result.Tables = a.tables
	result.Columns = a.columns

	if a.cartesianJoins > 0 {
		result.Warnings = append(result.Warnings,
			"JOIN without ON or USING clause may produce a cartesian product")
	}
	if a.selectStar {
		result.Warnings = append(result.Warnings,
			"SELECT * returns all columns; list the columns you need explicitly")
	}
	if a.subqueryDepth > maxSubqueryDepth {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("subquery nesting depth %d exceeds %d; consider flattening", a.subqueryDepth, maxSubqueryDepth))
	}

	result.Complexity = classifyComplexity(a)
	result.RecommendedTimeoutSeconds = recommendTimeout(opts.TimeoutSeconds, result.Complexity)

	result.SQL, result.LimitApplied = applyRowCap(normalized, stmt, dbType, opts.MaxRows)

	result.Valid = true
	return result
}

// normalize trims whitespace and a single trailing semicolon so that
// "SELECT 1;" and "SELECT 1" validate identically.
func normalize(sqlText string) string {
	s := strings.TrimSpace(sqlText)
	s = strings.TrimRight(s, ";")
	return strings.TrimSpace(s)
}

// isSelect reports whether stmt is a plain SELECT or a set operation
// (UNION/INTERSECT/EXCEPT), whose members the grammar restricts to query
// expressions.
func isSelect(stmt ast.StmtNode) bool {
	switch stmt.(type) {
	case *ast.SelectStmt, *ast.SetOprStmt:
		return true
	}
	return false
}

// stmtKind names a statement type for the rejection message.
func stmtKind(stmt ast.StmtNode) string {
	switch s := stmt.(type) {
	case *ast.InsertStmt:
		if s.IsReplace {
			return "replace"
		}
		return "insert"
	case *ast.UpdateStmt:
		return "update"
	case *ast.DeleteStmt:
		return "delete"
	case *ast.DropTableStmt, *ast.DropDatabaseStmt, *ast.DropIndexStmt, *ast.DropUserStmt:
		return "drop"
	case *ast.AlterTableStmt, *ast.AlterDatabaseStmt:
		return "alter"
	case *ast.TruncateTableStmt:
		return "truncate"
	case *ast.CreateTableStmt, *ast.CreateDatabaseStmt, *ast.CreateIndexStmt,
		*ast.CreateUserStmt, *ast.CreateViewStmt:
		return "create"
	case *ast.GrantStmt:
		return "grant"
	case *ast.RevokeStmt:
		return "revoke"
	case *ast.SetStmt:
		return "set"
	case *ast.ShowStmt:
		return "show"
	case *ast.ExplainStmt:
		return "explain"
	case *ast.BeginStmt, *ast.CommitStmt, *ast.RollbackStmt:
		return "transaction control"
	case *ast.LoadDataStmt:
		return "load data"
	case *ast.UseStmt:
		return "use"
	default:
		return "statement"
	}
}

func classifyComplexity(a *analysis) Complexity {
	switch {
	case a.subqueryDepth > 2 || a.joinCount >= 4 || (a.hasAggregate && a.joinCount >= 2):
		return ComplexityHigh
	case a.subqueryDepth > 0 || a.joinCount >= 1 || a.hasAggregate:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

// recommendTimeout scales the baseline down with complexity. Complex
// queries get less time, not more: under load the goal is fast failure,
// not generous allowances.
func recommendTimeout(base int, c Complexity) int {
	var t int
	switch c {
	case ComplexityHigh:
		t = base / 2
	case ComplexityMedium:
		t = base * 2 / 3
	default:
		t = base
	}
	if t < minTimeoutSeconds {
		t = minTimeoutSeconds
	}
	return t
}
