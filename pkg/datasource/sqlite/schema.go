package sqlite

import (
	"context"
	"fmt"

	"github.com/quill-data/quill-engine/pkg/datasource"
)

const tableQuery = `
SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`

// Schema introspects tables via sqlite_master and the table_info and
// foreign_key_list pragmas.
func (a *Adapter) Schema(ctx context.Context) (*datasource.Schema, error) {
	db, err := a.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, tableQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	schema := &datasource.Schema{Tables: make(map[string][]datasource.ColumnMeta, len(tables))}

	for _, table := range tables {
		cols, err := a.tableColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		schema.Tables[table] = cols

		rels, err := a.foreignKeys(ctx, table)
		if err != nil {
			return nil, err
		}
		schema.Relationships = append(schema.Relationships, rels...)
	}

	return schema, nil
}

// quoteIdent doubles embedded quotes; pragma arguments cannot be bound
// as parameters.
func quoteIdent(name string) string {
	return `"` + replaceAllQuotes(name) + `"`
}

func replaceAllQuotes(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			out = append(out, '"', '"')
		} else {
			out = append(out, name[i])
		}
	}
	return string(out)
}

func (a *Adapter) tableColumns(ctx context.Context, table string) ([]datasource.ColumnMeta, error) {
	db, err := a.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to read table_info for %s: %w", table, err)
	}
	defer rows.Close()

	var cols []datasource.ColumnMeta
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table_info row: %w", err)
		}
		cols = append(cols, datasource.ColumnMeta{
			Name:       name,
			DataType:   ctype,
			IsNullable: notNull == 0,
			IsPrimary:  pk > 0,
		})
	}
	return cols, rows.Err()
}

func (a *Adapter) foreignKeys(ctx context.Context, table string) ([]datasource.Relationship, error) {
	db, err := a.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign_key_list for %s: %w", table, err)
	}
	defer rows.Close()

	var rels []datasource.Relationship
	for rows.Next() {
		var (
			id, seq                   int
			refTable, from, to        string
			onUpdate, onDelete, match string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("failed to scan foreign_key_list row: %w", err)
		}
		rels = append(rels, datasource.Relationship{
			FromTable:  table,
			FromColumn: from,
			ToTable:    refTable,
			ToColumn:   to,
		})
	}
	return rels, rows.Err()
}

// FormatSchemaForPrompt renders the schema for LLM prompt context.
func (a *Adapter) FormatSchemaForPrompt(s *datasource.Schema) string {
	return datasource.FormatSchema(s)
}
