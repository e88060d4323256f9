package mssql

import (
	"context"
	"fmt"

	"github.com/quill-data/quill-engine/pkg/datasource"
)

const columnQuery = `
SELECT c.TABLE_NAME,
       c.COLUMN_NAME,
       c.DATA_TYPE,
       CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END,
       CASE WHEN k.COLUMN_NAME IS NULL THEN 0 ELSE 1 END
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN (
    SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
    FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
    JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
      ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
    WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
) k ON c.TABLE_NAME = k.TABLE_NAME AND c.COLUMN_NAME = k.COLUMN_NAME
WHERE c.TABLE_SCHEMA = 'dbo'
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`

const foreignKeyQuery = `
SELECT tp.name,
       cp.name,
       tr.name,
       cr.name
FROM sys.foreign_key_columns fkc
JOIN sys.tables tp ON fkc.parent_object_id = tp.object_id
JOIN sys.columns cp ON fkc.parent_object_id = cp.object_id AND fkc.parent_column_id = cp.column_id
JOIN sys.tables tr ON fkc.referenced_object_id = tr.object_id
JOIN sys.columns cr ON fkc.referenced_object_id = cr.object_id AND fkc.referenced_column_id = cr.column_id
ORDER BY tp.name, cp.name`

// Schema introspects dbo tables, columns, and foreign keys.
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
