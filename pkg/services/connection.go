package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/crypto"
	"github.com/quill-data/quill-engine/pkg/datasource"
	"github.com/quill-data/quill-engine/pkg/models"
	"github.com/quill-data/quill-engine/pkg/ratelimit"
	"github.com/quill-data/quill-engine/pkg/repositories"
)

// CreateConnectionRequest holds fields for registering a connection.
// Password arrives in plaintext and is encrypted before storage.
type CreateConnectionRequest struct {
	Name     string        `json:"name"`
	DBType   models.DBType `json:"db_type"`
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	Database string        `json:"database"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	SSL      bool          `json:"ssl"`
}

// UpdateConnectionRequest updates a connection. Only non-nil fields are
// applied; a nil Password keeps the stored credential.
type UpdateConnectionRequest struct {
	Name     *string `json:"name,omitempty"`
	Host     *string `json:"host,omitempty"`
	Port     *int    `json:"port,omitempty"`
	Database *string `json:"database,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	SSL      *bool   `json:"ssl,omitempty"`
}

// TestResult reports one connection test.
type TestResult struct {
	Success   bool   `json:"success"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// ConnectionService manages stored connections. Mutations invalidate the
// adapter cache synchronously so no request can reach a pool built from
// stale credentials.
type ConnectionService interface {
	Create(ctx context.Context, userID string, req CreateConnectionRequest) (*models.ConnectionConfig, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*models.ConnectionConfig, error)
	List(ctx context.Context, userID string) ([]models.ConnectionConfig, error)
	SetActive(ctx context.Context, userID string, id uuid.UUID) error
	Update(ctx context.Context, userID string, id uuid.UUID, req UpdateConnectionRequest) (*models.ConnectionConfig, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	Test(ctx context.Context, userID string, id uuid.UUID) (*TestResult, error)
}

type connectionService struct {
	repo      repositories.ConnectionRepository
	encryptor *crypto.Encryptor
	cache     *datasource.AdapterCache
	schemas   SchemaService
	limiter   *ratelimit.Limiter
	logger    *zap.Logger
}

// NewConnectionService creates the connection manager.
func NewConnectionService(
	repo repositories.ConnectionRepository,
	encryptor *crypto.Encryptor,
	cache *datasource.AdapterCache,
	schemas SchemaService,
	limiter *ratelimit.Limiter,
	logger *zap.Logger,
) ConnectionService {
	return &connectionService{
		repo:      repo,
		encryptor: encryptor,
		cache:     cache,
		schemas:   schemas,
		limiter:   limiter,
		logger:    logger.Named("connections"),
	}
}

func (s *connectionService) Create(ctx context.Context, userID string, req CreateConnectionRequest) (*models.ConnectionConfig, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	encrypted, err := s.encryptor.Encrypt(req.Password)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("encrypt credentials: %w", err))
	}

	port := req.Port
	if port == 0 {
		port = req.DBType.DefaultPort()
	}

	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	conn := &models.ConnectionConfig{
		UserID:   userID,
		Name:     req.Name,
		DBType:   req.DBType,
		Host:     req.Host,
		Port:     port,
		Database: req.Database,
		Username: req.Username,
		Password: encrypted,
		SSL:      req.SSL,
		// The first connection becomes active so the pipeline works
		// without an extra activation step.
		IsActive: len(existing) == 0,
	}

	if err := s.repo.Create(ctx, conn); err != nil {
		return nil, err
	}

	s.logger.Info("connection created",
		zap.String("user_id", userID),
		zap.String("connection_id", conn.ID.String()),
		zap.String("db_type", string(conn.DBType)))

	redact(conn)
	return conn, nil
}

func (s *connectionService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.ConnectionConfig, error) {
	conn, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	redact(conn)
	return conn, nil
}

func (s *connectionService) List(ctx context.Context, userID string) ([]models.ConnectionConfig, error) {
	conns, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range conns {
		conns[i].Password = ""
	}
	return conns, nil
}

func (s *connectionService) SetActive(ctx context.Context, userID string, id uuid.UUID) error {
	return s.repo.SetActive(ctx, userID, id)
}

func (s *connectionService) Update(ctx context.Context, userID string, id uuid.UUID, req UpdateConnectionRequest) (*models.ConnectionConfig, error) {
	conn, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	applyUpdate(conn, req)
	if req.Password != nil {
		encrypted, err := s.encryptor.Encrypt(*req.Password)
		if err != nil {
			return nil, apperrors.Internal(fmt.Errorf("encrypt credentials: %w", err))
		}
		conn.Password = encrypted
	}

	if err := s.repo.Update(ctx, conn); err != nil {
		return nil, err
	}

	// Invalidate before returning so the next Acquire dials with the
	// updated credentials, never the cached pool.
	s.cache.Invalidate(userID, id)
	s.schemas.Invalidate(id)

	redact(conn)
	return conn, nil
}

func (s *connectionService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.cache.Invalidate(userID, id)
	s.schemas.Invalidate(id)
	return nil
}

// Test dials the stored connection once and reports reachability.
// Gated by the connection-test rate tier.
func (s *connectionService) Test(ctx context.Context, userID string, id uuid.UUID) (*TestResult, error) {
	if err := s.limiter.Check(ctx, ratelimit.TierConnectionTest, userID); err != nil {
		return nil, err
	}

	conn, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	plaintext, err := s.encryptor.Decrypt(conn.Password)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("decrypt credentials: %w", err))
	}
	cfg := *conn
	cfg.Password = plaintext

	adapter, err := datasource.New(cfg, s.logger)
	if err != nil {
		return nil, err
	}
	defer adapter.Close()

	start := time.Now()
	if err := adapter.Connect(ctx); err != nil {
		return &TestResult{Success: false, Error: connectFailureMessage(err)}, nil
	}
	if err := adapter.Ping(ctx); err != nil {
		return &TestResult{Success: false, Error: connectFailureMessage(err)}, nil
	}

	return &TestResult{
		Success:   true,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func validateCreate(req CreateConnectionRequest) error {
	var problems []string
	if strings.TrimSpace(req.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !req.DBType.Valid() {
		problems = append(problems, fmt.Sprintf("unsupported db_type: %s", req.DBType))
	}
	if req.DBType != models.DBTypeSQLite && strings.TrimSpace(req.Host) == "" {
		problems = append(problems, "host is required")
	}
	if strings.TrimSpace(req.Database) == "" {
		problems = append(problems, "database is required")
	}
	if len(problems) > 0 {
		return apperrors.Validation(problems...)
	}
	return nil
}

func applyUpdate(conn *models.ConnectionConfig, req UpdateConnectionRequest) {
	if req.Name != nil {
		conn.Name = *req.Name
	}
	if req.Host != nil {
		conn.Host = *req.Host
	}
	if req.Port != nil {
		conn.Port = *req.Port
	}
	if req.Database != nil {
		conn.Database = *req.Database
	}
	if req.Username != nil {
		conn.Username = *req.Username
	}
	if req.SSL != nil {
		conn.SSL = *req.SSL
	}
}

func redact(conn *models.ConnectionConfig) {
	conn.Password = ""
}

// connectFailureMessage keeps driver detail out of user-facing results.
func connectFailureMessage(err error) string {
	return apperrors.UserMessage(apperrors.Connection("could not reach the database", err))
}
