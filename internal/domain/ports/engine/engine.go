// Package engine defines the port for pluggable optical-recognition
// engines. Variants (local tesseract, cloud vision services) normalize
// their output into model.RecognitionResult.
package engine

import (
	"context"

	"document-ai-pipeline/internal/domain/model"
)

// Options are per-call engine knobs.
type Options struct {
	// Language hint ("eng", "fra", ...). Empty means the engine default.
	Language string
}

// Engine converts image/scan content into text with per-region confidence.
type Engine interface {
	Name() string

	// Initialize prepares engine-specific resources. It is idempotent;
	// calling it on an initialized engine is a no-op.
	Initialize(ctx context.Context) error

	ExtractText(ctx context.Context, path string, opts Options) (*model.RecognitionResult, error)
	ExtractTextFromBuffer(ctx context.Context, buf []byte, opts Options) (*model.RecognitionResult, error)

	// Cleanup releases engine resources. The engine may be re-initialized
	// afterwards.
	Cleanup(ctx context.Context) error
}

// Factory resolves a provider name to a cached, initialized Engine. Names
// are case-insensitive and dash/underscore aliased ("google-vision" ==
// "google_vision"). Unknown names fail with domain.ErrUnsupportedProvider.
type Factory interface {
	// Engine returns the engine for provider, constructing and caching it
	// on first use. Empty provider selects the configured default.
	Engine(ctx context.Context, provider string) (Engine, error)

	// Cleanup releases every cached engine and clears the cache.
	Cleanup(ctx context.Context) error
}
