package postgres

// GenerationGuidelines returns PostgreSQL-specific rules for SQL
// generation prompts.
func (a *Adapter) GenerationGuidelines() string {
	return `- Use double quotes for identifiers that need quoting, single quotes for strings
- Use LIMIT for row caps
- Use ILIKE for case-insensitive matching
- Date arithmetic: NOW() - INTERVAL '7 days'
- Cast with ::type, e.g. created_at::date`
}

// ExampleQueries returns idiomatic queries for prompt few-shots.
func (a *Adapter) ExampleQueries() []string {
	return []string{
		`SELECT id, name FROM customers ORDER BY created_at DESC LIMIT 10`,
		`SELECT date_trunc('month', created_at) AS month, COUNT(*) FROM orders GROUP BY month ORDER BY month`,
		`SELECT c.name, SUM(o.total) AS revenue FROM customers c JOIN orders o ON o.customer_id = c.id GROUP BY c.name ORDER BY revenue DESC LIMIT 5`,
	}
}
