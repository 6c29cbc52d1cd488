package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	storageport "document-ai-pipeline/internal/domain/ports/storage"
)

var _ storageport.Backend = (*LocalBackend)(nil)

// LocalBackend stores one JSON file per document under a directory. List
// reads every file and paginates in memory, which is O(n) per call; fine
// for small deployments, documented as such.
type LocalBackend struct {
	dir string
	log *zerolog.Logger
	mu  sync.RWMutex
}

func NewLocalBackend(dir string, log *zerolog.Logger) *LocalBackend {
	if dir == "" {
		dir = "./storage"
	}
	return &LocalBackend{dir: dir, log: log}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("init local storage %s: %w", b.dir, errors.Join(domain.ErrStorage, err))
	}
	b.log.Info().Str("path", b.dir).Msg("local storage initialized")
	return nil
}

func (b *LocalBackend) Save(ctx context.Context, documentID string, rec *model.DocumentRecord) (*storageport.SaveReceipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.documentPath(documentID)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document %s: %w", documentID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("save document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}
	return &storageport.SaveReceipt{Location: path, Backend: b.Name(), DocumentID: documentID}, nil
}

func (b *LocalBackend) Get(ctx context.Context, documentID string) (*model.DocumentRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.read(documentID)
}

func (b *LocalBackend) read(documentID string) (*model.DocumentRecord, error) {
	data, err := os.ReadFile(b.documentPath(documentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}
	var rec model.DocumentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", documentID, err)
	}
	return &rec, nil
}

func (b *LocalBackend) Update(ctx context.Context, documentID string, patch model.RecordPatch) (*model.DocumentRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.read(documentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("update document %s: %w", documentID, domain.ErrNotFound)
	}
	applyPatch(rec, patch, time.Now().UTC())

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document %s: %w", documentID, err)
	}
	if err := os.WriteFile(b.documentPath(documentID), data, 0o644); err != nil {
		return nil, fmt.Errorf("update document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}
	return rec, nil
}

func (b *LocalBackend) Delete(ctx context.Context, documentID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := os.Remove(b.documentPath(documentID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}
	return true, nil
}

func (b *LocalBackend) Exists(ctx context.Context, documentID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, err := os.Stat(b.documentPath(documentID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}
	return true, nil
}

func (b *LocalBackend) List(ctx context.Context, opts storageport.ListOptions) ([]*model.DocumentRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", errors.Join(domain.ErrStorage, err))
	}

	var records []*model.DocumentRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		rec, err := b.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil || rec == nil {
			continue
		}
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		if opts.DocumentType != "" && rec.Metadata.DocumentType != opts.DocumentType {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Metadata.CreatedAt.After(records[j].Metadata.CreatedAt)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if opts.Offset >= len(records) {
		return []*model.DocumentRecord{}, nil
	}
	end := opts.Offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[opts.Offset:end], nil
}

func (b *LocalBackend) Cleanup(ctx context.Context) error {
	b.log.Info().Msg("local storage cleanup complete")
	return nil
}

func (b *LocalBackend) documentPath(documentID string) string {
	return filepath.Join(b.dir, documentID+".json")
}
