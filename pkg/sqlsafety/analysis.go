package sqlsafety

import (
	"github.com/pingcap/tidb/parser/ast"
)

// analysis aggregates what one AST walk observed.
type analysis struct {
	tables         []string
	columns        []string
	joinCount      int
	cartesianJoins int
	subqueryDepth  int
	hasAggregate   bool
	selectStar     bool
}

// analyze walks stmt collecting referenced tables, selected columns, and
// the structural signals (joins, nesting, aggregation) that drive
// warnings and complexity classification.
func analyze(stmt ast.StmtNode) *analysis {
	v := &walker{
		seenTables:  make(map[string]struct{}),
		seenColumns: make(map[string]struct{}),
		out:         &analysis{},
	}
	stmt.Accept(v)
	return v.out
}

type walker struct {
	out         *analysis
	seenTables  map[string]struct{}
	seenColumns map[string]struct{}
	depth       int // current subquery nesting
}

func (w *walker) Enter(n ast.Node) (ast.Node, bool) {
	switch node := n.(type) {
	case *ast.Join:
		// A Join node with only a left side is the parser's wrapper for a
		// single table reference, not an actual join.
		if node.Right != nil {
			w.out.joinCount++
			if node.On == nil && len(node.Using) == 0 && !node.NaturalJoin {
				w.out.cartesianJoins++
			}
		}
	case *ast.TableName:
		w.addTable(node.Name.O)
	case *ast.SelectStmt:
		// Depth counts SELECTs below the outermost one, which covers both
		// expression subqueries and derived tables in FROM.
		w.depth++
		if w.depth-1 > w.out.subqueryDepth {
			w.out.subqueryDepth = w.depth - 1
		}
		if node.Fields != nil {
			for _, field := range node.Fields.Fields {
				if field.WildCard != nil {
					w.out.selectStar = true
					continue
				}
				if col, ok := field.Expr.(*ast.ColumnNameExpr); ok {
					w.addColumn(col.Name.Name.O)
				}
			}
		}
	case *ast.AggregateFuncExpr:
		w.out.hasAggregate = true
	}
	return n, false
}

func (w *walker) Leave(n ast.Node) (ast.Node, bool) {
	if _, ok := n.(*ast.SelectStmt); ok {
		w.depth--
	}
	return n, true
}

func (w *walker) addTable(name string) {
	if name == "" {
		return
	}
	if _, ok := w.seenTables[name]; ok {
		return
	}
	w.seenTables[name] = struct{}{}
	w.out.tables = append(w.out.tables, name)
}

func (w *walker) addColumn(name string) {
	if name == "" {
		return
	}
	if _, ok := w.seenColumns[name]; ok {
		return
	}
	w.seenColumns[name] = struct{}{}
	w.out.columns = append(w.out.columns, name)
}
