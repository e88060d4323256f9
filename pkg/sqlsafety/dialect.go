package sqlsafety

import (
	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/mysql"

	"github.com/quill-data/quill-engine/pkg/models"
)

// newParser returns a parser configured for the given dialect. The AST
// capability is MySQL-grammar based; PostgreSQL, SQLite, and SQL Server
// text is parsed under ANSI_QUOTES/PIPES_AS_CONCAT so double-quoted
// identifiers and || concatenation parse correctly. Dialect-only syntax
// (T-SQL brackets, TOP) fails as a syntax error rather than being
// coerced, which is the safe direction for a gate.
//
// A new parser is built per call: parser.Parser is not goroutine-safe
// and validation runs concurrently across requests.
func newParser(dbType models.DBType) *parser.Parser {
	p := parser.New()
	switch dbType {
	case models.DBTypeMySQL:
		// default MySQL mode
	default:
		p.SetSQLMode(mysql.ModeANSIQuotes | mysql.ModePipesAsConcat)
	}
	return p
}
