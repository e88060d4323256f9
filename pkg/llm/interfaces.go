// Package llm provides SQL-generation clients over hosted LLM APIs.
package llm

import "context"

// SQLGenerator defines the interface for turning a prepared prompt into
// candidate SQL. Use this interface for dependency injection to enable
// mocking in tests.
type SQLGenerator interface {
	// GenerateSQL sends the system and user prompts to the backing model
	// and returns the raw completion text.
	GenerateSQL(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Model returns the configured model name.
	Model() string

	// Provider returns the backing provider name, e.g. "openai".
	Provider() string
}

// Ensure both clients implement SQLGenerator at compile time.
var (
	_ SQLGenerator = (*OpenAIClient)(nil)
	_ SQLGenerator = (*AnthropicClient)(nil)
)
