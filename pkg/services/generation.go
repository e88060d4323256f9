package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/datasource"
	"github.com/quill-data/quill-engine/pkg/llm"
	"github.com/quill-data/quill-engine/pkg/ratelimit"
	"github.com/quill-data/quill-engine/pkg/repositories"
	"github.com/quill-data/quill-engine/pkg/sqlsafety"
)

const generationSystemPrompt = `You are a SQL generation assistant. Given a database schema and a question, respond with a single SELECT statement that answers it. Respond with SQL only, no explanation. Never write statements that modify data.`

// GenerationResult is a validated SQL candidate for a question.
type GenerationResult struct {
	SQL        string               `json:"sql"`
	Model      string               `json:"model"`
	Complexity sqlsafety.Complexity `json:"complexity"`
	Warnings   []string             `json:"warnings"`
	Tables     []string             `json:"tables"`
}

// GenerationService turns natural-language questions into validated SQL
// for the user's active connection.
type GenerationService interface {
	Generate(ctx context.Context, userID, question string) (*GenerationResult, error)
}

type generationService struct {
	limiter     *ratelimit.Limiter
	connections repositories.ConnectionRepository
	schemas     SchemaService
	cache       *datasource.AdapterCache
	generator   llm.SQLGenerator
	logger      *zap.Logger
}

// NewGenerationService creates the generation pipeline.
func NewGenerationService(
	limiter *ratelimit.Limiter,
	connections repositories.ConnectionRepository,
	schemas SchemaService,
	cache *datasource.AdapterCache,
	generator llm.SQLGenerator,
	logger *zap.Logger,
) GenerationService {
	return &generationService{
		limiter:     limiter,
		connections: connections,
		schemas:     schemas,
		cache:       cache,
		generator:   generator,
		logger:      logger.Named("generation"),
	}
}

// Generate runs: rate limit (generation tier), schema prompt assembly,
// LLM call, then safety validation of the candidate before returning it.
func (s *generationService) Generate(ctx context.Context, userID, question string) (*GenerationResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.Validation("question must not be empty")
	}

	if err := s.limiter.Check(ctx, ratelimit.TierGeneration, userID); err != nil {
		return nil, err
	}

	conn, err := s.connections.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	schema, err := s.schemas.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.cache.Acquire(ctx, userID, conn.ID)
	if err != nil {
		return nil, err
	}

	prompt := buildGenerationPrompt(adapter, schema, question)

	raw, err := s.generator.GenerateSQL(ctx, generationSystemPrompt, prompt)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("sql generation: %w", err))
	}

	candidate := llm.ExtractSQL(raw)
	validation := adapter.ValidateQuery(candidate, sqlsafety.DefaultOptions())
	if !validation.Valid {
		s.logger.Warn("generated SQL failed validation",
			zap.String("model", s.generator.Model()),
			zap.Strings("errors", validation.Errors))
		return nil, apperrors.Validation(validation.Errors...)
	}

	return &GenerationResult{
		SQL:        validation.SQL,
		Model:      s.generator.Model(),
		Complexity: validation.Complexity,
		Warnings:   validation.Warnings,
		Tables:     validation.Tables,
	}, nil
}

func buildGenerationPrompt(adapter datasource.Adapter, schema *datasource.Schema, question string) string {
	var b strings.Builder

	b.WriteString("Database schema:\n")
	b.WriteString(adapter.FormatSchemaForPrompt(schema))
	b.WriteString("\n\nDialect guidelines:\n")
	b.WriteString(adapter.GenerationGuidelines())

	if examples := adapter.ExampleQueries(); len(examples) > 0 {
		b.WriteString("\n\nExample queries:\n")
		for _, q := range examples {
			b.WriteString(q)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
