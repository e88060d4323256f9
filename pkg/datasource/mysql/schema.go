package mysql

import (
	"context"
	"fmt"

	"github.com/quill-data/quill-engine/pkg/datasource"
)

const columnQuery = `
SELECT TABLE_NAME,
       COLUMN_NAME,
       DATA_TYPE,
       IS_NULLABLE = 'YES',
       COLUMN_KEY = 'PRI'
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE()
ORDER BY TABLE_NAME, ORDINAL_POSITION`

const foreignKeyQuery = `
SELECT TABLE_NAME,
       COLUMN_NAME,
       REFERENCED_TABLE_NAME,
       REFERENCED_COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE()
  AND REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY TABLE_NAME, COLUMN_NAME`

// Schema introspects the current database's tables, columns, and
// foreign keys.
func (a *Adapter) Schema(ctx context.Context) (*datasource.Schema, error) {
	db, err := a.getDB()
	if err != nil {
		return nil, err
	}

	schema := &datasource.Schema{Tables: make(map[string][]datasource.ColumnMeta)}

	rows, err := db.QueryContext(ctx, columnQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table string
		var col datasource.ColumnMeta
		if err := rows.Scan(&table, &col.Name, &col.DataType, &col.IsNullable, &col.IsPrimary); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		schema.Tables[table] = append(schema.Tables[table], col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fkRows, err := db.QueryContext(ctx, foreignKeyQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect foreign keys: %w", err)
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var rel datasource.Relationship
		if err := fkRows.Scan(&rel.FromTable, &rel.FromColumn, &rel.ToTable, &rel.ToColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key row: %w", err)
		}
		schema.Relationships = append(schema.Relationships, rel)
	}
	if err := fkRows.Err(); err != nil {
		return nil, err
	}

	return schema, nil
}

// FormatSchemaForPrompt renders the schema for LLM prompt context.
func (a *Adapter) FormatSchemaForPrompt(s *datasource.Schema) string {
	return datasource.FormatSchema(s)
}
