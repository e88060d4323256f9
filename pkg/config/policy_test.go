package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyForHost(t *testing.T) {
	tests := []struct {
		name        string
		host        string
		wantSSL     bool
		wantTrust   bool
		wantTimeout time.Duration
	}{
		{"localhost", "localhost", false, false, 5 * time.Second},
		{"loopback ip", "127.0.0.1", false, false, 5 * time.Second},
		{"private ip", "10.1.2.3", false, false, 5 * time.Second},
		{"docker host", "host.docker.internal", false, false, 5 * time.Second},
		{"aws rds", "mydb.cluster-abc.us-east-1.rds.amazonaws.com", true, true, 30 * time.Second},
		{"azure sql", "myserver.database.windows.net", true, true, 30 * time.Second},
		{"supabase", "db.xyzproject.supabase.co", true, true, 30 * time.Second},
		{"neon", "ep-cool-name-123.us-east-2.aws.neon.tech", true, true, 30 * time.Second},
		{"unknown host", "db.internal.example.com", true, false, 15 * time.Second},
		{"public ip", "203.0.113.10", true, false, 15 * time.Second},
		{"case insensitive", "MYDB.RDS.AMAZONAWS.COM", true, true, 30 * time.Second},
		{"empty host", "", true, false, 15 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PolicyForHost(tt.host)
			assert.Equal(t, tt.wantSSL, p.SSLDefault, "SSLDefault")
			assert.Equal(t, tt.wantTrust, p.TrustServerCert, "TrustServerCert")
			assert.Equal(t, tt.wantTimeout, p.ConnectTimeout, "ConnectTimeout")
		})
	}
}

// A hostname that merely contains a cloud suffix mid-string must not match;
// suffix rules are dot-anchored.
func TestPolicyForHostAnchoring(t *testing.T) {
	p := PolicyForHost("rds.amazonaws.com.evil.example")
	assert.False(t, p.TrustServerCert)

	p = PolicyForHost("notneon.tech")
	assert.False(t, p.TrustServerCert)

	// The bare suffix itself is a valid match.
	p = PolicyForHost("neon.tech")
	assert.True(t, p.TrustServerCert)
}
