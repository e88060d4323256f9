package llm

import "context"

// MockGenerator is a configurable mock for testing SQL generation.
// Set GenerateSQLFunc to control behavior in tests.
type MockGenerator struct {
	// GenerateSQLFunc is called when GenerateSQL is invoked.
	// If nil, returns an empty string and nil error.
	GenerateSQLFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// Call tracking for verification.
	GenerateSQLCalls int
	LastSystemPrompt string
	LastUserPrompt   string
}

// NewMockGenerator creates a new mock with sensible defaults.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{ModelName: "mock-model"}
}

// GenerateSQL implements SQLGenerator.
func (m *MockGenerator) GenerateSQL(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.GenerateSQLCalls++
	m.LastSystemPrompt = systemPrompt
	m.LastUserPrompt = userPrompt
	if m.GenerateSQLFunc != nil {
		return m.GenerateSQLFunc(ctx, systemPrompt, userPrompt)
	}
	return "", nil
}

// Model implements SQLGenerator.
func (m *MockGenerator) Model() string { return m.ModelName }

// Provider implements SQLGenerator.
func (m *MockGenerator) Provider() string { return "mock" }

var _ SQLGenerator = (*MockGenerator)(nil)
