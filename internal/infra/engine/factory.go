package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	engineport "document-ai-pipeline/internal/domain/ports/engine"
)

var _ engineport.Factory = (*Factory)(nil)

// Factory constructs recognition engines lazily and caches them per
// provider name for the lifetime of the process. Safe for concurrent use.
type Factory struct {
	cfg config.OCRConfig
	log *zerolog.Logger

	mu      sync.Mutex
	engines map[string]engineport.Engine
}

func NewFactory(cfg config.OCRConfig, log *zerolog.Logger) *Factory {
	return &Factory{
		cfg:     cfg,
		log:     log,
		engines: make(map[string]engineport.Engine),
	}
}

// normalizeProvider folds case and dash/underscore variants onto the
// canonical provider names.
func normalizeProvider(name string) string {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	switch n {
	case "azure", "azure_cv":
		return "azure_cv"
	default:
		return n
	}
}

func (f *Factory) Engine(ctx context.Context, provider string) (engineport.Engine, error) {
	if provider == "" {
		provider = f.cfg.Provider
	}
	name := normalizeProvider(provider)

	f.mu.Lock()
	defer f.mu.Unlock()

	if eng, ok := f.engines[name]; ok {
		return eng, nil
	}

	var eng engineport.Engine
	switch name {
	case "tesseract":
		eng = NewTesseractEngine(f.cfg.Language, f.log)
	case "google_vision":
		eng = NewGoogleVisionEngine(f.cfg.GoogleVision, f.log)
	case "azure_cv":
		eng = NewAzureReadEngine(f.cfg.AzureRead, f.log)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, provider)
	}

	if err := eng.Initialize(ctx); err != nil {
		return nil, err
	}
	f.engines[name] = eng
	f.log.Info().Str("provider", name).Msg("created and cached ocr engine")
	return eng, nil
}

// AvailableProviders lists the provider names the factory can build.
func (f *Factory) AvailableProviders() []string {
	return []string{"tesseract", "google_vision", "azure_cv"}
}

// ProviderConfigured reports whether the named provider has the
// configuration it needs to initialize.
func (f *Factory) ProviderConfigured(provider string) bool {
	switch normalizeProvider(provider) {
	case "tesseract":
		return true
	case "google_vision":
		return f.cfg.GoogleVision.CredentialsFile != "" || f.cfg.GoogleVision.ProjectID != ""
	case "azure_cv":
		return f.cfg.AzureRead.Endpoint != "" && f.cfg.AzureRead.Key != ""
	default:
		return false
	}
}

// Cleanup releases every cached engine and clears the cache. Errors are
// logged, not returned per engine; the first error wins.
func (f *Factory) Cleanup(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var first error
	for name, eng := range f.engines {
		if err := eng.Cleanup(ctx); err != nil {
			f.log.Error().Err(err).Str("provider", name).Msg("engine cleanup failed")
			if first == nil {
				first = err
			}
		}
	}
	f.engines = make(map[string]engineport.Engine)
	return first
}
