// Package repositories implements data access for the engine store.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/database"
	"github.com/quill-data/quill-engine/pkg/models"
)

// ConnectionRepository defines data access for stored connections. The
// Password field on returned configs holds the encrypted form; the
// connection service decrypts only when building adapters.
type ConnectionRepository interface {
	Create(ctx context.Context, conn *models.ConnectionConfig) error
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ConnectionConfig, error)
	ListByUser(ctx context.Context, userID string) ([]models.ConnectionConfig, error)
	GetActive(ctx context.Context, userID string) (*models.ConnectionConfig, error)
	SetActive(ctx context.Context, userID string, id uuid.UUID) error
	Update(ctx context.Context, conn *models.ConnectionConfig) error
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

type connectionRepository struct {
	db *database.DB
}

// NewConnectionRepository creates a PostgreSQL-backed repository.
func NewConnectionRepository(db *database.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

const connectionColumns = `id, user_id, name, db_type, host, port, database_name,
	username, password_encrypted, ssl, is_active, created_at, updated_at`

func scanConnection(row pgx.Row) (*models.ConnectionConfig, error) {
	var c models.ConnectionConfig
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.DBType, &c.Host, &c.Port, &c.Database,
		&c.Username, &c.Password, &c.SSL, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan connection: %w", err)
	}
	return &c, nil
}

func (r *connectionRepository) Create(ctx context.Context, conn *models.ConnectionConfig) error {
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}

	query := `
		INSERT INTO connections (id, user_id, name, db_type, host, port, database_name,
			username, password_encrypted, ssl, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		conn.ID, conn.UserID, conn.Name, conn.DBType, conn.Host, conn.Port,
		conn.Database, conn.Username, conn.Password, conn.SSL, conn.IsActive,
	).Scan(&conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

func (r *connectionRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ConnectionConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM connections WHERE user_id = $1 AND id = $2`, connectionColumns)
	return scanConnection(r.db.QueryRow(ctx, query, userID, id))
}

func (r *connectionRepository) ListByUser(ctx context.Context, userID string) ([]models.ConnectionConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM connections WHERE user_id = $1 ORDER BY created_at`, connectionColumns)

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []models.ConnectionConfig
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}

func (r *connectionRepository) GetActive(ctx context.Context, userID string) (*models.ConnectionConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM connections WHERE user_id = $1 AND is_active`, connectionColumns)

	conn, err := scanConnection(r.db.QueryRow(ctx, query, userID))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrNoActiveConnection
	}
	return conn, err
}

// SetActive flips the active flag to the given connection in one
// transaction, enforcing the one-active-per-user invariant.
func (r *connectionRepository) SetActive(ctx context.Context, userID string, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE connections SET is_active = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_active`,
		userID,
	); err != nil {
		return fmt.Errorf("clear active: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE connections SET is_active = TRUE, updated_at = NOW() WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return tx.Commit(ctx)
}

func (r *connectionRepository) Update(ctx context.Context, conn *models.ConnectionConfig) error {
	query := `
		UPDATE connections
		SET name = $3, db_type = $4, host = $5, port = $6, database_name = $7,
			username = $8, password_encrypted = $9, ssl = $10, updated_at = NOW()
		WHERE user_id = $1 AND id = $2`

	tag, err := r.db.Exec(ctx, query,
		conn.UserID, conn.ID, conn.Name, conn.DBType, conn.Host, conn.Port,
		conn.Database, conn.Username, conn.Password, conn.SSL,
	)
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *connectionRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM connections WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
