package sqlsafety

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/parser/ast"

	"github.com/quill-data/quill-engine/pkg/models"
)

// applyRowCap enforces maxRows on a validated statement, returning the
// execution-ready SQL and whether it was rewritten. Statements that
// already carry a LIMIT at or below the cap pass through untouched.
func applyRowCap(sqlText string, stmt ast.StmtNode, dbType models.DBType, maxRows int) (string, bool) {
	limit := limitClause(stmt)

	if limit == nil {
		if dbType == models.DBTypeSQLServer {
			return wrapWithCap(sqlText, dbType, maxRows), true
		}
		return appendLimit(sqlText, maxRows), true
	}

	count, ok := limitCount(limit)
	if !ok {
		// Non-literal count (placeholder, expression). Cannot prove it is
		// bounded, so wrap.
		return wrapWithCap(sqlText, dbType, maxRows), true
	}
	if count <= int64(maxRows) {
		return sqlText, false
	}
	return wrapWithCap(sqlText, dbType, maxRows), true
}

// limitClause pulls the top-level LIMIT from a SELECT or set operation.
func limitClause(stmt ast.StmtNode) *ast.Limit {
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		return s.Limit
	case *ast.SetOprStmt:
		return s.Limit
	}
	return nil
}

// limitCount extracts the literal row count from a LIMIT clause.
func limitCount(limit *ast.Limit) (int64, bool) {
	if limit == nil || limit.Count == nil {
		return 0, false
	}
	ve, ok := limit.Count.(ast.ValueExpr)
	if !ok {
		return 0, false
	}
	switch v := ve.GetValue().(type) {
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	}
	return 0, false
}

// appendLimit adds a LIMIT to a statement that has none. When the text
// ends in a line comment the clause goes on its own line so it is not
// swallowed by the comment.
func appendLimit(sqlText string, maxRows int) string {
	sep := " "
	if idx := strings.LastIndexByte(sqlText, '\n'); lineHasComment(sqlText[idx+1:]) {
		sep = "\n"
	}
	return fmt.Sprintf("%s%sLIMIT %d", sqlText, sep, maxRows)
}

func lineHasComment(line string) bool {
	return strings.Contains(line, "--") || strings.Contains(line, "#")
}

// wrapWithCap bounds a statement by nesting it in a capped outer SELECT.
// Used when the existing LIMIT exceeds the cap (appending a second LIMIT
// would be a syntax error) and for SQL Server, which has no LIMIT.
func wrapWithCap(sqlText string, dbType models.DBType, maxRows int) string {
	if dbType == models.DBTypeSQLServer {
		return fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited", maxRows, sqlText)
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlText, maxRows)
}
