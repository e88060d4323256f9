package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-data/quill-engine/pkg/models"
	"github.com/quill-data/quill-engine/pkg/testhelpers"
)

func TestQueryHistoryRepository(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	connRepo := NewConnectionRepository(engineDB.DB)
	repo := NewQueryHistoryRepository(engineDB.DB)
	ctx := context.Background()

	newEntry := func(userID, connName, sqlText, status string) *models.QueryHistoryEntry {
		conn := testConnection(userID, connName)
		require.NoError(t, connRepo.Create(ctx, conn))
		return &models.QueryHistoryEntry{
			UserID:       userID,
			ConnectionID: conn.ID,
			SQL:          sqlText,
			Status:       status,
			RowCount:     3,
		}
	}

	t.Run("record and list", func(t *testing.T) {
		engineDB.TruncateAll(t)

		entry := newEntry("alice", "main", "SELECT 1", "success")
		nl := "how many users"
		entry.NaturalLanguage = &nl
		require.NoError(t, repo.Record(ctx, entry))
		assert.False(t, entry.ExecutedAt.IsZero())

		entries, err := repo.ListByUser(ctx, "alice", 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "SELECT 1", entries[0].SQL)
		require.NotNil(t, entries[0].NaturalLanguage)
		assert.Equal(t, "how many users", *entries[0].NaturalLanguage)
	})

	t.Run("newest first", func(t *testing.T) {
		engineDB.TruncateAll(t)

		first := newEntry("alice", "main", "SELECT 1", "success")
		require.NoError(t, repo.Record(ctx, first))
		second := &models.QueryHistoryEntry{
			UserID:       "alice",
			ConnectionID: first.ConnectionID,
			SQL:          "SELECT 2",
			Status:       "error",
		}
		require.NoError(t, repo.Record(ctx, second))

		entries, err := repo.ListByUser(ctx, "alice", 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "SELECT 2", entries[0].SQL)
	})

	t.Run("limit clamped", func(t *testing.T) {
		engineDB.TruncateAll(t)

		entry := newEntry("alice", "main", "SELECT 1", "success")
		require.NoError(t, repo.Record(ctx, entry))

		entries, err := repo.ListByUser(ctx, "alice", -1)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("scoped to user", func(t *testing.T) {
		engineDB.TruncateAll(t)

		entry := newEntry("alice", "main", "SELECT 1", "success")
		require.NoError(t, repo.Record(ctx, entry))

		entries, err := repo.ListByUser(ctx, "bob", 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
