package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/config"
)

// NewFromConfig builds a SQLGenerator for the configured provider.
func NewFromConfig(cfg config.LLMConfig, logger *zap.Logger) (SQLGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, logger)
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.Model, logger)
	case "":
		return nil, fmt.Errorf("llm provider not configured")
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
