// Package storage implements the persistence backend variants and the
// backend factory behind the ports/storage.Factory contract.
package storage

import (
	"time"

	"document-ai-pipeline/internal/domain/model"
)

// applyPatch merges a partial update into an existing record and bumps
// UpdatedAt. Shared by the read-merge-write backends.
func applyPatch(rec *model.DocumentRecord, patch model.RecordPatch, now time.Time) {
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.Error != nil {
		rec.Error = *patch.Error
	}
	if patch.Filename != nil {
		rec.Filename = *patch.Filename
	}
	if patch.FileSize != nil {
		rec.Metadata.FileSize = *patch.FileSize
	}
	if patch.CreatedAt != nil {
		rec.Metadata.CreatedAt = *patch.CreatedAt
	}
	rec.Metadata.UpdatedAt = now
}
