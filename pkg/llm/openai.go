package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient generates SQL through an OpenAI-compatible chat endpoint.
// Works against api.openai.com as well as local vLLM-style servers.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
// baseURL may be empty to use the default API host.
func NewOpenAIClient(apiKey, model, baseURL string, logger *zap.Logger) (*OpenAIClient, error) {
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger.Named("llm"),
	}, nil
}

// GenerateSQL implements SQLGenerator.
func (c *OpenAIClient) GenerateSQL(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.logger.Debug("LLM request",
		zap.String("provider", "openai"),
		zap.String("model", c.model),
		zap.Int("prompt_len", len(userPrompt)))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		// SQL generation wants determinism, not creativity.
		Temperature: 0,
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// Model implements SQLGenerator.
func (c *OpenAIClient) Model() string { return c.model }

// Provider implements SQLGenerator.
func (c *OpenAIClient) Provider() string { return "openai" }
