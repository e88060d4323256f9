// Package audit provides security audit logging for SIEM consumption.
// Events are structured JSON under a dedicated logger namespace so they
// can be filtered and alerted on independently of application logs.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering
// and alerting.
type SecurityEventType string

const (
	// EventBlockedStatement is logged when the validator rejects a
	// non-SELECT or multi-statement query.
	EventBlockedStatement SecurityEventType = "blocked_statement"
	// EventInjectionAttempt is logged when libinjection flags a
	// parameter value.
	EventInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventRateLimited is logged when a request is denied by a rate
	// limit tier.
	EventRateLimited SecurityEventType = "rate_limited"
	// EventQueryExecution is logged for successful executions. High
	// volume; at INFO so it can be filtered out.
	EventQueryExecution SecurityEventType = "query_execution"
)

// SecurityEvent is one auditable event with the context a SIEM needs.
type SecurityEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	EventType    SecurityEventType `json:"event_type"`
	UserID       string            `json:"user_id,omitempty"`
	ConnectionID uuid.UUID         `json:"connection_id,omitempty"`
	ClientIP     string            `json:"client_ip,omitempty"`
	Details      any               `json:"details"`
	Severity     string            `json:"severity"` // info, warning, critical
}

// InjectionDetails carries the specifics of a flagged parameter.
type InjectionDetails struct {
	ParamName   string `json:"param_name"`
	Fingerprint string `json:"fingerprint"`
}

// BlockedStatementDetails carries what the validator rejected. The SQL
// is sanitized and truncated before logging.
type BlockedStatementDetails struct {
	SQL     string   `json:"sql"`
	Reasons []string `json:"reasons"`
}

// SecurityAuditor writes security events through a namespaced logger.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates an auditor under the "security_audit"
// namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogBlockedStatement records a validator rejection. WARN severity: a
// blocked write is usually an LLM mistake, sometimes a probe.
func (a *SecurityAuditor) LogBlockedStatement(userID string, connectionID uuid.UUID, sqlText string, reasons []string) {
	event := SecurityEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    EventBlockedStatement,
		UserID:       userID,
		ConnectionID: connectionID,
		Details: BlockedStatementDetails{
			SQL:     logging.SanitizeQuery(sqlText),
			Reasons: reasons,
		},
		Severity: "warning",
	}
	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("statement blocked by validator",
		zap.String("event_json", string(eventJSON)),
		zap.String("user_id", userID),
		zap.String("connection_id", connectionID.String()),
		zap.Strings("reasons", reasons),
		zap.String("severity", "warning"),
	)
}

// LogInjectionAttempt records a libinjection hit on a parameter value.
// ERROR level with critical severity for immediate alerting. The value
// itself is not logged; the fingerprint identifies the pattern.
func (a *SecurityAuditor) LogInjectionAttempt(userID string, connectionID uuid.UUID, details InjectionDetails, clientIP string) {
	event := SecurityEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    EventInjectionAttempt,
		UserID:       userID,
		ConnectionID: connectionID,
		ClientIP:     clientIP,
		Details:      details,
		Severity:     "critical",
	}
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("user_id", userID),
		zap.String("connection_id", connectionID.String()),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", clientIP),
		zap.String("severity", "critical"),
	)
}

// LogRateLimited records a denied request.
func (a *SecurityAuditor) LogRateLimited(userID, tier string, retryAfterSeconds int) {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventRateLimited,
		UserID:    userID,
		Details: map[string]any{
			"tier":                tier,
			"retry_after_seconds": retryAfterSeconds,
		},
		Severity: "warning",
	}
	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("request rate limited",
		zap.String("event_json", string(eventJSON)),
		zap.String("user_id", userID),
		zap.String("tier", tier),
		zap.Int("retry_after_seconds", retryAfterSeconds),
		zap.String("severity", "warning"),
	)
}

// LogQueryExecution records a successful execution for the audit trail.
func (a *SecurityAuditor) LogQueryExecution(userID string, connectionID uuid.UUID, rowCount int, executionTimeMs int64) {
	event := SecurityEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    EventQueryExecution,
		UserID:       userID,
		ConnectionID: connectionID,
		Details: map[string]any{
			"row_count":         rowCount,
			"execution_time_ms": executionTimeMs,
		},
		Severity: "info",
	}
	eventJSON, _ := json.Marshal(event)

	a.logger.Info("query executed",
		zap.String("event_json", string(eventJSON)),
		zap.String("user_id", userID),
		zap.String("connection_id", connectionID.String()),
		zap.Int("row_count", rowCount),
		zap.Int64("execution_time_ms", executionTimeMs),
		zap.String("severity", "info"),
	)
}
