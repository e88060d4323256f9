package sqlite

// GenerationGuidelines returns SQLite-specific rules for SQL generation
// prompts.
func (a *Adapter) GenerationGuidelines() string {
	return "- Use double quotes for identifiers that need quoting, single quotes for strings\n" +
		"- Use LIMIT for row caps\n" +
		"- Date arithmetic: datetime('now', '-7 days')\n" +
		"- SQLite types are flexible; prefer comparing with CAST when mixing types"
}

// ExampleQueries returns idiomatic queries for prompt few-shots.
func (a *Adapter) ExampleQueries() []string {
	return []string{
		"SELECT id, name FROM customers ORDER BY created_at DESC LIMIT 10",
		"SELECT strftime('%Y-%m', created_at) AS month, COUNT(*) FROM orders GROUP BY month ORDER BY month",
		"SELECT c.name, SUM(o.total) AS revenue FROM customers c JOIN orders o ON o.customer_id = c.id GROUP BY c.name ORDER BY revenue DESC LIMIT 5",
	}
}
