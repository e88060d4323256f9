package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/quill-data/quill-engine/pkg/database"
	"github.com/quill-data/quill-engine/pkg/models"
)

// QueryHistoryRepository records executed and rejected queries.
type QueryHistoryRepository interface {
	Record(ctx context.Context, entry *models.QueryHistoryEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.QueryHistoryEntry, error)
}

type queryHistoryRepository struct {
	db *database.DB
}

// NewQueryHistoryRepository creates a PostgreSQL-backed repository.
func NewQueryHistoryRepository(db *database.DB) QueryHistoryRepository {
	return &queryHistoryRepository{db: db}
}

func (r *queryHistoryRepository) Record(ctx context.Context, entry *models.QueryHistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO query_history (id, user_id, connection_id, natural_language,
			sql_text, status, error_message, row_count, execution_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING executed_at`

	err := r.db.QueryRow(ctx, query,
		entry.ID, entry.UserID, entry.ConnectionID, entry.NaturalLanguage,
		entry.SQL, entry.Status, entry.ErrorMessage, entry.RowCount, entry.ExecutionTimeMs,
	).Scan(&entry.ExecutedAt)
	if err != nil {
		return fmt.Errorf("insert query history: %w", err)
	}
	return nil
}

func (r *queryHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.QueryHistoryEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, user_id, connection_id, natural_language, sql_text, status,
			error_message, row_count, execution_time_ms, executed_at
		FROM query_history
		WHERE user_id = $1
		ORDER BY executed_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list query history: %w", err)
	}
	defer rows.Close()

	var entries []models.QueryHistoryEntry
	for rows.Next() {
		var e models.QueryHistoryEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.ConnectionID, &e.NaturalLanguage, &e.SQL,
			&e.Status, &e.ErrorMessage, &e.RowCount, &e.ExecutionTimeMs, &e.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("scan query history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
