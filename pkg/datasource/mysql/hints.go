package mysql

// GenerationGuidelines returns MySQL-specific rules for SQL generation
// prompts.
func (a *Adapter) GenerationGuidelines() string {
	return "- Use backticks for identifiers that need quoting, single quotes for strings\n" +
		"- Use LIMIT for row caps\n" +
		"- Date arithmetic: NOW() - INTERVAL 7 DAY\n" +
		"- String concatenation uses CONCAT(), not ||"
}

// ExampleQueries returns idiomatic queries for prompt few-shots.
func (a *Adapter) ExampleQueries() []string {
	return []string{
		"SELECT id, name FROM customers ORDER BY created_at DESC LIMIT 10",
		"SELECT DATE_FORMAT(created_at, '%Y-%m') AS month, COUNT(*) FROM orders GROUP BY month ORDER BY month",
		"SELECT c.name, SUM(o.total) AS revenue FROM customers c JOIN orders o ON o.customer_id = c.id GROUP BY c.name ORDER BY revenue DESC LIMIT 5",
	}
}
