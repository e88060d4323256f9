package postgres

import (
	"context"
	"fmt"

	"github.com/quill-data/quill-engine/pkg/datasource"
)

// columnQuery lists public-schema columns with primary key membership.
const columnQuery = `
SELECT c.table_name,
       c.column_name,
       c.data_type,
       c.is_nullable = 'YES' AS is_nullable,
       COALESCE(k.is_primary, FALSE) AS is_primary
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.table_name, kcu.column_name, TRUE AS is_primary
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
      ON tc.constraint_name = kcu.constraint_name
     AND tc.table_schema = kcu.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY'
      AND tc.table_schema = 'public'
) k ON c.table_name = k.table_name AND c.column_name = k.column_name
WHERE c.table_schema = 'public'
ORDER BY c.table_name, c.ordinal_position`

// foreignKeyQuery lists public-schema foreign key edges.
const foreignKeyQuery = `
SELECT tc.table_name,
       kcu.column_name,
       ccu.table_name AS referenced_table,
       ccu.column_name AS referenced_column
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name
 AND tc.table_schema = ccu.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
  AND tc.table_schema = 'public'
ORDER BY tc.table_name, kcu.column_name`

// Schema introspects public-schema tables, columns, and foreign keys.
func (a *Adapter) Schema(ctx context.Context) (*datasource.Schema, error) {
	pool, err := a.getPool()
	if err != nil {
		return nil, err
	}

	schema := &datasource.Schema{Tables: make(map[string][]datasource.ColumnMeta)}

	rows, err := pool.Query(ctx, columnQuery)
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

	fkRows, err := pool.Query(ctx, foreignKeyQuery)
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
