package datasource

import (
	"fmt"
	"strings"
)

// FormatSchema renders a schema as compact text for LLM prompts. Tables
// come out sorted with column types and nullability, followed by the
// foreign key edges the generator should join on.
func FormatSchema(s *Schema) string {
	if s == nil || len(s.Tables) == 0 {
		return "(no tables found)"
	}

	var b strings.Builder
	for _, table := range s.TableNames() {
		fmt.Fprintf(&b, "TABLE %s (\n", table)
		for _, col := range s.Tables[table] {
			b.WriteString("  " + col.Name + " " + col.DataType)
			if col.IsPrimary {
				b.WriteString(" PRIMARY KEY")
			}
			if !col.IsNullable {
				b.WriteString(" NOT NULL")
			}
			b.WriteString("\n")
		}
		b.WriteString(")\n")
	}

	if len(s.Relationships) > 0 {
		b.WriteString("\nRELATIONSHIPS:\n")
		for _, rel := range s.Relationships {
			fmt.Fprintf(&b, "  %s.%s -> %s.%s\n", rel.FromTable, rel.FromColumn, rel.ToTable, rel.ToColumn)
		}
	}
	return b.String()
}
