package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain/ports/adapter"
)

// NewAnalyzer builds the analyzer for the configured provider. A disabled
// config yields the noop analyzer so callers never branch on nil.
func NewAnalyzer(ctx context.Context, cfg config.AIConfig, log *zerolog.Logger) (adapter.DocumentAnalyzer, error) {
	if !cfg.Enabled {
		return NewNoopAnalyzer(), nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini":
		return NewGeminiAnalyzer(ctx, cfg.Gemini, cfg.TokenBudget, log)
	case "openai":
		return NewOpenAIAnalyzer(cfg.OpenAI, cfg.TokenBudget, log)
	case "ollama":
		return NewOllamaAnalyzer(cfg.Ollama, cfg.TokenBudget, log), nil
	case "none", "":
		return NewNoopAnalyzer(), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
