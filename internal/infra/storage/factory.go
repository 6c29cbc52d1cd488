package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	storageport "document-ai-pipeline/internal/domain/ports/storage"
)

var _ storageport.Factory = (*Factory)(nil)

// Factory owns the single active backend instance. Swapping to a different
// backend name cleans up the outgoing instance first; there are never two
// live instances at once.
type Factory struct {
	cfg config.StorageConfig
	log *zerolog.Logger

	mu     sync.Mutex
	active storageport.Backend
}

func NewFactory(cfg config.StorageConfig, log *zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, log: log}
}

// normalizeBackend folds the accepted aliases onto canonical names.
func normalizeBackend(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "local", "filesystem":
		return "local"
	case "postgres", "postgresql", "pg":
		return "postgres"
	case "firestore":
		return "firestore"
	case "s3", "gcs":
		return "cloud-object"
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

func (f *Factory) Backend(ctx context.Context, name string) (storageport.Backend, error) {
	if name == "" {
		name = f.cfg.Backend
	}
	canonical := normalizeBackend(name)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.active != nil && f.active.Name() == canonical {
		return f.active, nil
	}

	var backend storageport.Backend
	switch canonical {
	case "local":
		backend = NewLocalBackend(f.cfg.Local.Path, f.log)
	case "postgres":
		backend = NewPostgresBackend(f.cfg.Postgres, f.log)
	case "firestore":
		backend = NewFirestoreBackend(f.cfg.Firestore, f.log)
	case "cloud-object":
		return nil, fmt.Errorf("%w: cloud object storage (%s); use local, postgres or firestore", domain.ErrBackendNotImplemented, name)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedBackend, name)
	}

	// Swap: the outgoing instance is cleaned up before the new one goes live.
	if f.active != nil {
		if err := f.active.Cleanup(ctx); err != nil {
			f.log.Error().Err(err).Str("backend", f.active.Name()).Msg("backend cleanup failed during swap")
		}
		f.active = nil
	}

	if err := backend.Initialize(ctx); err != nil {
		return nil, err
	}
	f.active = backend
	f.log.Info().Str("backend", canonical).Msg("created and initialized storage backend")
	return backend, nil
}

// AvailableBackends lists the backend names the factory can build.
func (f *Factory) AvailableBackends() []string {
	return []string{"local", "postgres", "firestore"}
}

// BackendConfigured reports whether the named backend has the
// configuration it needs to initialize.
func (f *Factory) BackendConfigured(name string) bool {
	switch normalizeBackend(name) {
	case "local":
		return true
	case "postgres":
		return f.cfg.Postgres.URL != ""
	case "firestore":
		return f.cfg.Firestore.ProjectID != ""
	default:
		return false
	}
}

func (f *Factory) Cleanup(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return nil
	}
	err := f.active.Cleanup(ctx)
	f.active = nil
	return err
}
