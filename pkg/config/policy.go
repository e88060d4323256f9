package config

import (
	"net"
	"strings"
	"time"
)

// ConnectPolicy describes how to dial a given host: whether TLS is on by
// default, whether self-signed certificates are tolerated, and how long
// to wait for the connection to establish. Cloud providers commonly
// terminate TLS with certificates that fail strict verification, and
// their connect latency is an order of magnitude above localhost.
type ConnectPolicy struct {
	SSLDefault      bool
	TrustServerCert bool
	ConnectTimeout  time.Duration
}

// policyRule matches a hostname either exactly or by dot-anchored suffix.
// Suffix matching is anchored ("neon.tech" matches "x.neon.tech" but not
// "notneon.tech"), which is the point of having a table instead of
// substring checks scattered across call sites.
type policyRule struct {
	exact  string
	suffix string
	policy ConnectPolicy
}

var localPolicy = ConnectPolicy{
	SSLDefault:     false,
	ConnectTimeout: 5 * time.Second,
}

var cloudPolicy = ConnectPolicy{
	SSLDefault:      true,
	TrustServerCert: true,
	ConnectTimeout:  30 * time.Second,
}

var defaultPolicy = ConnectPolicy{
	SSLDefault:     true,
	ConnectTimeout: 15 * time.Second,
}

var policyRules = []policyRule{
	{exact: "localhost", policy: localPolicy},
	{exact: "host.docker.internal", policy: localPolicy},
	{suffix: "rds.amazonaws.com", policy: cloudPolicy},
	{suffix: "redshift.amazonaws.com", policy: cloudPolicy},
	{suffix: "database.windows.net", policy: cloudPolicy},
	{suffix: "postgres.database.azure.com", policy: cloudPolicy},
	{suffix: "mysql.database.azure.com", policy: cloudPolicy},
	{suffix: "supabase.co", policy: cloudPolicy},
	{suffix: "supabase.com", policy: cloudPolicy},
	{suffix: "neon.tech", policy: cloudPolicy},
	{suffix: "planetscale.com", policy: cloudPolicy},
	{suffix: "psdb.cloud", policy: cloudPolicy},
	{suffix: "cockroachlabs.cloud", policy: cloudPolicy},
	{suffix: "render.com", policy: cloudPolicy},
	{suffix: "railway.app", policy: cloudPolicy},
	{suffix: "gcp.cloud.sql", policy: cloudPolicy},
}

// PolicyForHost returns the dial policy for a hostname. Loopback and
// private addresses get the local policy; known managed-database suffixes
// get the cloud policy; everything else gets conservative defaults.
func PolicyForHost(host string) ConnectPolicy {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return defaultPolicy
	}

	if ip := net.ParseIP(h); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() {
			return localPolicy
		}
		return defaultPolicy
	}

	for _, rule := range policyRules {
		if rule.exact != "" && h == rule.exact {
			return rule.policy
		}
		if rule.suffix != "" && (h == rule.suffix || strings.HasSuffix(h, "."+rule.suffix)) {
			return rule.policy
		}
	}
	return defaultPolicy
}
