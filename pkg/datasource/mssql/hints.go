package mssql

// GenerationGuidelines returns T-SQL rules for SQL generation prompts.
func (a *Adapter) GenerationGuidelines() string {
	return "- Use square brackets for identifiers that need quoting, single quotes for strings\n" +
		"- Use TOP (n) for row caps; SQL Server has no LIMIT\n" +
		"- Date arithmetic: DATEADD(day, -7, GETDATE())\n" +
		"- Use + for string concatenation"
}

// ExampleQueries returns idiomatic queries for prompt few-shots.
func (a *Adapter) ExampleQueries() []string {
	return []string{
		"SELECT TOP (10) id, name FROM customers ORDER BY created_at DESC",
		"SELECT FORMAT(created_at, 'yyyy-MM') AS month, COUNT(*) AS n FROM orders GROUP BY FORMAT(created_at, 'yyyy-MM') ORDER BY month",
		"SELECT TOP (5) c.name, SUM(o.total) AS revenue FROM customers c JOIN orders o ON o.customer_id = c.id GROUP BY c.name ORDER BY revenue DESC",
	}
}
