package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected string
	}{
		{
			name:     "bare statement",
			response: "SELECT id FROM users",
			expected: "SELECT id FROM users",
		},
		{
			name:     "sql fence",
			response: "```sql\nSELECT id FROM users\n```",
			expected: "SELECT id FROM users",
		},
		{
			name:     "untagged fence",
			response: "```\nSELECT 1\n```",
			expected: "SELECT 1",
		},
		{
			name:     "fence with surrounding prose",
			response: "Here is the query:\n```sql\nSELECT count(*) FROM orders\n```\nLet me know if you need changes.",
			expected: "SELECT count(*) FROM orders",
		},
		{
			name:     "thinking tags stripped",
			response: "<think>\nThe user wants a count.\n</think>\nSELECT count(*) FROM orders",
			expected: "SELECT count(*) FROM orders",
		},
		{
			name:     "thinking tags then fence",
			response: "<think>reasoning</think>\n```sql\nSELECT 1\n```",
			expected: "SELECT 1",
		},
		{
			name:     "whitespace trimmed",
			response: "\n\n  SELECT 1  \n",
			expected: "SELECT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractSQL(tt.response))
		})
	}
}
