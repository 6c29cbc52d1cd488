package ai

import (
	"context"

	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/adapter"
)

var _ adapter.DocumentAnalyzer = (*NoopAnalyzer)(nil)

// NoopAnalyzer satisfies the analyzer port when enrichment is disabled.
type NoopAnalyzer struct{}

func NewNoopAnalyzer() *NoopAnalyzer { return &NoopAnalyzer{} }

func (a *NoopAnalyzer) Provider() string { return "none" }

func (a *NoopAnalyzer) AnalyzeDocument(ctx context.Context, text, filename string) (model.Analysis, error) {
	return model.DisabledAnalysis(), nil
}
