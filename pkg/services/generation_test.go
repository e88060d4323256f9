package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/datasource"
	"github.com/quill-data/quill-engine/pkg/llm"
	"github.com/quill-data/quill-engine/pkg/models"
	"github.com/quill-data/quill-engine/pkg/ratelimit"
)

type generationHarness struct {
	svc       GenerationService
	generator *llm.MockGenerator
	stub      *stubAdapter
}

func newGenerationHarness(t *testing.T, userID string) *generationHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	stub := &stubAdapter{}
	dialect := testDialect(stub)

	repo := newMemoryConnRepo()
	conn := &models.ConnectionConfig{
		UserID:   userID,
		Name:     "main",
		DBType:   dialect,
		Host:     "localhost",
		Database: "shop",
		IsActive: true,
	}
	require.NoError(t, repo.Create(context.Background(), conn))

	cache := datasource.NewAdapterCache(datasource.CacheConfig{}, repoSource{repo: repo}, passthroughDecryptor{}, logger)
	t.Cleanup(func() { _ = cache.Close() })

	limiter := ratelimit.New(ratelimit.NewMemoryStore(), logger)
	schemas := NewSchemaService(limiter, repo, cache, logger)
	generator := llm.NewMockGenerator()

	return &generationHarness{
		svc:       NewGenerationService(limiter, repo, schemas, cache, generator, logger),
		generator: generator,
		stub:      stub,
	}
}

func TestGenerateReturnsValidatedSQL(t *testing.T) {
	h := newGenerationHarness(t, "alice")
	h.generator.GenerateSQLFunc = func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		return "```sql\nSELECT * FROM orders\n```", nil
	}

	result, err := h.svc.Generate(context.Background(), "alice", "show me all orders")
	require.NoError(t, err)

	// Row cap is applied to the candidate before it is returned.
	assert.Equal(t, "SELECT * FROM orders LIMIT 1000", result.SQL)
	assert.Equal(t, "mock-model", result.Model)
	assert.Contains(t, result.Tables, "orders")
}

func TestGeneratePromptCarriesSchemaAndHints(t *testing.T) {
	h := newGenerationHarness(t, "alice")
	h.generator.GenerateSQLFunc = func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		return "SELECT count(*) FROM orders", nil
	}

	_, err := h.svc.Generate(context.Background(), "alice", "how many orders are there")
	require.NoError(t, err)

	prompt := h.generator.LastUserPrompt
	assert.Contains(t, prompt, "TABLE orders")
	assert.Contains(t, prompt, "Use double quotes for identifiers.")
	assert.Contains(t, prompt, "SELECT count(*) FROM orders")
	assert.Contains(t, prompt, "how many orders are there")
}

func TestGenerateRejectsUnsafeCandidate(t *testing.T) {
	h := newGenerationHarness(t, "alice")
	h.generator.GenerateSQLFunc = func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		return "DROP TABLE orders", nil
	}

	_, err := h.svc.Generate(context.Background(), "alice", "delete everything")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestGenerateEmptyQuestion(t *testing.T) {
	h := newGenerationHarness(t, "alice")

	_, err := h.svc.Generate(context.Background(), "alice", "   ")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Equal(t, 0, h.generator.GenerateSQLCalls)
}

func TestGenerateRateLimited(t *testing.T) {
	h := newGenerationHarness(t, "alice")
	h.generator.GenerateSQLFunc = func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		return "SELECT 1", nil
	}
	ctx := context.Background()

	for i := 0; i < ratelimit.TierGeneration.Limit; i++ {
		_, err := h.svc.Generate(ctx, "alice", "question")
		require.NoError(t, err, "request %d", i+1)
	}

	_, err := h.svc.Generate(ctx, "alice", "question")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindRateLimit, apperrors.KindOf(err))
	assert.Equal(t, ratelimit.TierGeneration.Limit, h.generator.GenerateSQLCalls)
}

func TestGenerateNoActiveConnection(t *testing.T) {
	h := newGenerationHarness(t, "alice")

	_, err := h.svc.Generate(context.Background(), "bob", "question")
	assert.ErrorIs(t, err, apperrors.ErrNoActiveConnection)
}
