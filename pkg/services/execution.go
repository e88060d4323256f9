// Package services composes the safety validator, adapter cache, rate
// limiter, and stores into the engine's user-facing operations.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/audit"
	"github.com/quill-data/quill-engine/pkg/datasource"
	"github.com/quill-data/quill-engine/pkg/models"
	"github.com/quill-data/quill-engine/pkg/ratelimit"
	"github.com/quill-data/quill-engine/pkg/repositories"
	"github.com/quill-data/quill-engine/pkg/sqlsafety"
)

// historyWriteTimeout bounds the fire-and-forget history insert.
const historyWriteTimeout = 5 * time.Second

// ExecuteRequest is one query execution submission.
type ExecuteRequest struct {
	SQL string `json:"sql"`
	// NaturalLanguage is the originating question, when the SQL came from
	// generation. Recorded in history only.
	NaturalLanguage string `json:"natural_language,omitempty"`
	// Params are named values the caller interpolated into the request
	// upstream. They are screened for injection, never executed.
	Params map[string]any `json:"params,omitempty"`
	// ClientIP is recorded on security events.
	ClientIP string `json:"client_ip,omitempty"`
}

// SafetyReport is the transparency metadata clients render alongside
// results.
type SafetyReport struct {
	LimitApplied bool                 `json:"limit_applied"`
	Complexity   sqlsafety.Complexity `json:"complexity"`
	Warnings     []string             `json:"warnings"`
}

// ExecutionResult is a successful execution with its safety metadata.
type ExecutionResult struct {
	Columns         []datasource.ColumnInfo `json:"columns"`
	Rows            []map[string]any        `json:"rows"`
	RowCount        int                     `json:"row_count"`
	ExecutionTimeMs int64                   `json:"execution_time_ms"`
	Safety          SafetyReport            `json:"safety"`
}

// ExecutionService runs validated SQL against the user's active
// connection.
type ExecutionService interface {
	Execute(ctx context.Context, userID string, req ExecuteRequest) (*ExecutionResult, error)
	History(ctx context.Context, userID string, limit int) ([]models.QueryHistoryEntry, error)
}

type executionService struct {
	limiter     *ratelimit.Limiter
	connections repositories.ConnectionRepository
	history     repositories.QueryHistoryRepository
	cache       *datasource.AdapterCache
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewExecutionService creates the execution orchestrator.
func NewExecutionService(
	limiter *ratelimit.Limiter,
	connections repositories.ConnectionRepository,
	history repositories.QueryHistoryRepository,
	cache *datasource.AdapterCache,
	auditor *audit.SecurityAuditor,
	logger *zap.Logger,
) ExecutionService {
	return &executionService{
		limiter:     limiter,
		connections: connections,
		history:     history,
		cache:       cache,
		auditor:     auditor,
		logger:      logger.Named("execution"),
	}
}

// Execute runs the pipeline in fixed order: rate limit, active
// connection, adapter acquire, parameter screen, validate, timed
// execute, classify. Each step short-circuits on failure.
func (s *executionService) Execute(ctx context.Context, userID string, req ExecuteRequest) (*ExecutionResult, error) {
	if req.ClientIP != "" {
		if err := s.limiter.Check(ctx, ratelimit.TierGlobal, req.ClientIP); err != nil {
			return nil, err
		}
	}

	if err := s.limiter.Check(ctx, ratelimit.TierExecution, userID); err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			s.auditor.LogRateLimited(userID, ratelimit.TierExecution.Name, appErr.RetryAfterSeconds)
		}
		return nil, err
	}

	conn, err := s.connections.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.cache.Acquire(ctx, userID, conn.ID)
	if err != nil {
		return nil, err
	}

	if hits := sqlsafety.CheckAllParameters(req.Params); len(hits) > 0 {
		for _, hit := range hits {
			s.auditor.LogInjectionAttempt(userID, conn.ID, audit.InjectionDetails{
				ParamName:   hit.ParamName,
				Fingerprint: hit.Fingerprint,
			}, req.ClientIP)
		}
		return nil, apperrors.Security("suspicious parameter value")
	}

	validation := adapter.ValidateQuery(req.SQL, sqlsafety.DefaultOptions())
	if !validation.Valid {
		s.auditor.LogBlockedStatement(userID, conn.ID, req.SQL, validation.Errors)
		s.recordHistory(userID, conn.ID, req, "blocked", errString(validation.Errors), 0, 0)
		return nil, apperrors.Validation(validation.Errors...)
	}

	timeout := time.Duration(validation.RecommendedTimeoutSeconds) * time.Second
	result, err := adapter.Execute(ctx, validation.SQL, timeout)
	if err != nil {
		classified := s.classifyExecutionError(adapter, err)
		s.recordHistory(userID, conn.ID, req, "error", classified.Error(), 0, 0)
		return nil, classified
	}

	s.auditor.LogQueryExecution(userID, conn.ID, result.RowCount, result.ExecutionTimeMs)
	s.recordHistory(userID, conn.ID, req, "success", "", result.RowCount, result.ExecutionTimeMs)

	return &ExecutionResult{
		Columns:         result.Columns,
		Rows:            result.Rows,
		RowCount:        result.RowCount,
		ExecutionTimeMs: result.ExecutionTimeMs,
		Safety: SafetyReport{
			LimitApplied: validation.LimitApplied,
			Complexity:   validation.Complexity,
			Warnings:     validation.Warnings,
		},
	}, nil
}

// History returns the user's recent query history.
func (s *executionService) History(ctx context.Context, userID string, limit int) ([]models.QueryHistoryEntry, error) {
	return s.history.ListByUser(ctx, userID, limit)
}

func (s *executionService) classifyExecutionError(adapter datasource.Adapter, err error) error {
	switch {
	case adapter.IsTimeoutError(err):
		return apperrors.Execution(
			fmt.Sprintf("query exceeded its timeout; %s", adapter.TimeoutBehavior()), err)
	case adapter.IsSyntaxError(err):
		return apperrors.Execution("query has a syntax error the database rejected", err)
	default:
		return apperrors.Execution("query execution failed", err)
	}
}

// recordHistory persists the history row without blocking the response.
// History failures are logged and dropped.
func (s *executionService) recordHistory(userID string, connectionID uuid.UUID, req ExecuteRequest, status, errMsg string, rowCount int, execMs int64) {
	entry := &models.QueryHistoryEntry{
		UserID:          userID,
		ConnectionID:    connectionID,
		SQL:             req.SQL,
		Status:          status,
		RowCount:        rowCount,
		ExecutionTimeMs: execMs,
	}
	if req.NaturalLanguage != "" {
		nl := req.NaturalLanguage
		entry.NaturalLanguage = &nl
	}
	if errMsg != "" {
		msg := errMsg
		entry.ErrorMessage = &msg
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := s.history.Record(ctx, entry); err != nil {
			s.logger.Warn("query history write failed", zap.Error(err))
		}
	}()
}

func errString(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[0]
}
