// Package adapter holds ports for external service adapters.
package adapter

import (
	"context"

	"document-ai-pipeline/internal/domain/model"
)

// DocumentAnalyzer is the port for AI enrichment: document type inference,
// summarization and insight extraction over already-extracted text.
// Implementations must not be relied on for pipeline success; callers treat
// any error as a degraded (non-fatal) pass.
type DocumentAnalyzer interface {
	Provider() string
	AnalyzeDocument(ctx context.Context, text, filename string) (model.Analysis, error)
}
