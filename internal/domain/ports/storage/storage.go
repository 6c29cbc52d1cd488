// Package storage defines the port for pluggable persistence backends
// providing CRUD + paginated listing over document records.
package storage

import (
	"context"

	"document-ai-pipeline/internal/domain/model"
)

// SaveReceipt is returned by Save; Location is a backend-specific locator
// reproducible from {Backend, DocumentID}.
type SaveReceipt struct {
	Location   string `json:"location"`
	Backend    string `json:"backend"`
	DocumentID string `json:"documentId"`
}

// ListOptions filters and paginates List. Zero Limit defaults to 100.
type ListOptions struct {
	Limit        int
	Offset       int
	Status       model.DocumentStatus
	DocumentType string
}

// Backend is the single source of truth for document records. All
// implementations must be safe for concurrent use.
type Backend interface {
	Name() string
	Initialize(ctx context.Context) error

	// Save upserts the record keyed by documentId.
	Save(ctx context.Context, documentID string, rec *model.DocumentRecord) (*SaveReceipt, error)

	// Get returns (nil, nil) when the record is absent.
	Get(ctx context.Context, documentID string) (*model.DocumentRecord, error)

	// Update applies a partial patch; absent records fail with
	// domain.ErrNotFound.
	Update(ctx context.Context, documentID string, patch model.RecordPatch) (*model.DocumentRecord, error)

	// Delete reports whether a record was removed; deleting an absent
	// record returns (false, nil), never an error.
	Delete(ctx context.Context, documentID string) (bool, error)

	Exists(ctx context.Context, documentID string) (bool, error)

	// List returns records ordered by creation time descending.
	List(ctx context.Context, opts ListOptions) ([]*model.DocumentRecord, error)

	Cleanup(ctx context.Context) error
}

// Factory owns the single active backend instance for the process. The
// instance is lazily constructed and swapped (with prior cleanup) only when
// the configured backend name changes; never two live instances at once.
type Factory interface {
	// Backend returns the active backend, constructing and initializing it
	// on first use. Empty name selects the configured default.
	Backend(ctx context.Context, name string) (Backend, error)

	Cleanup(ctx context.Context) error
}
