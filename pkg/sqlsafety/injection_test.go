package sqlsafety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckParameter(t *testing.T) {
	tests := []struct {
		name       string
		paramName  string
		value      any
		suspicious bool
	}{
		{name: "clean id", paramName: "customer_id", value: "12345", suspicious: false},
		{name: "clean email", paramName: "email", value: "user@example.com", suspicious: false},
		{name: "clean date", paramName: "start_date", value: "2024-01-15", suspicious: false},
		{name: "clean search term", paramName: "search", value: "laptop computers", suspicious: false},
		{name: "apostrophe in name", paramName: "name", value: "O'Brien", suspicious: false},
		{name: "dashes in prose", paramName: "note", value: "a note -- with dashes", suspicious: false},

		// Non-strings cannot carry payloads.
		{name: "integer", paramName: "limit", value: 100, suspicious: false},
		{name: "float", paramName: "price", value: 99.95, suspicious: false},
		{name: "bool", paramName: "active", value: true, suspicious: false},
		{name: "nil", paramName: "optional", value: nil, suspicious: false},
		{name: "empty string", paramName: "filter", value: "", suspicious: false},

		{name: "classic quote injection", paramName: "username", value: "' OR '1'='1", suspicious: true},
		{name: "drop table", paramName: "search", value: "'; DROP TABLE users--", suspicious: true},
		{name: "union select", paramName: "id", value: "1 UNION SELECT * FROM passwords", suspicious: true},
		{name: "comment truncation", paramName: "filter", value: "admin'--", suspicious: true},
		{name: "stacked queries", paramName: "name", value: "admin'; DELETE FROM logs; --", suspicious: true},
		{name: "boolean blind", paramName: "id", value: "1' AND '1'='1", suspicious: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckParameter(tt.paramName, tt.value)
			assert.Equal(t, tt.paramName, got.ParamName)
			assert.Equal(t, tt.suspicious, got.Suspicious)
			if tt.suspicious {
				assert.NotEmpty(t, got.Fingerprint)
			}
		})
	}
}

func TestCheckAllParameters(t *testing.T) {
	hits := CheckAllParameters(map[string]any{
		"customer_id": "12345",
		"limit":       50,
		"search":      "'; DROP TABLE users--",
	})
	assert.Len(t, hits, 1)
	assert.Equal(t, "search", hits[0].ParamName)
	assert.True(t, hits[0].Suspicious)
}
