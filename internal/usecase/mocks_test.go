package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	engineport "document-ai-pipeline/internal/domain/ports/engine"
	storageport "document-ai-pipeline/internal/domain/ports/storage"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memBackend is a small in-memory storage backend used by unit tests.
type memBackend struct {
	mu      sync.RWMutex
	store   map[string]*model.DocumentRecord
	saveErr error // used by tests to simulate save failures
}

func newMemBackend() *memBackend {
	return &memBackend{store: make(map[string]*model.DocumentRecord)}
}

func (m *memBackend) Name() string                         { return "mem" }
func (m *memBackend) Initialize(ctx context.Context) error { return nil }
func (m *memBackend) Cleanup(ctx context.Context) error    { return nil }

func (m *memBackend) Save(ctx context.Context, documentID string, rec *model.DocumentRecord) (*storageport.SaveReceipt, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.store[documentID] = &cp
	return &storageport.SaveReceipt{Location: "mem://" + documentID, Backend: "mem", DocumentID: documentID}, nil
}

func (m *memBackend) Get(ctx context.Context, documentID string) (*model.DocumentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.store[documentID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memBackend) Update(ctx context.Context, documentID string, patch model.RecordPatch) (*model.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.store[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
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
	rec.Metadata.UpdatedAt = time.Now().UTC()
	cp := *rec
	return &cp, nil
}

func (m *memBackend) Delete(ctx context.Context, documentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[documentID]; !ok {
		return false, nil
	}
	delete(m.store, documentID)
	return true, nil
}

func (m *memBackend) Exists(ctx context.Context, documentID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.store[documentID]
	return ok, nil
}

func (m *memBackend) List(ctx context.Context, opts storageport.ListOptions) ([]*model.DocumentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.DocumentRecord
	for _, rec := range m.store {
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		if opts.DocumentType != "" && rec.Metadata.DocumentType != opts.DocumentType {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.CreatedAt.After(out[j].Metadata.CreatedAt)
	})
	return out, nil
}

// memBackendFactory hands out one fixed backend.
type memBackendFactory struct {
	backend *memBackend
}

func (f *memBackendFactory) Backend(ctx context.Context, name string) (storageport.Backend, error) {
	return f.backend, nil
}

func (f *memBackendFactory) Cleanup(ctx context.Context) error { return nil }

// stubEngine returns a canned recognition result for every call.
type stubEngine struct {
	result *model.RecognitionResult
	err    error
	calls  int
}

func (e *stubEngine) Name() string                         { return "stub" }
func (e *stubEngine) Initialize(ctx context.Context) error { return nil }
func (e *stubEngine) Cleanup(ctx context.Context) error    { return nil }

func (e *stubEngine) ExtractText(ctx context.Context, path string, opts engineport.Options) (*model.RecognitionResult, error) {
	return e.ExtractTextFromBuffer(ctx, nil, opts)
}

func (e *stubEngine) ExtractTextFromBuffer(ctx context.Context, buf []byte, opts engineport.Options) (*model.RecognitionResult, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

type stubEngineFactory struct {
	engine engineport.Engine
}

func (f *stubEngineFactory) Engine(ctx context.Context, provider string) (engineport.Engine, error) {
	return f.engine, nil
}

func (f *stubEngineFactory) Cleanup(ctx context.Context) error { return nil }

// stubAnalyzer returns a fixed analysis or a fixed error.
type stubAnalyzer struct {
	provider string
	analysis model.Analysis
	err      error
}

func (a *stubAnalyzer) Provider() string {
	if a.provider == "" {
		return "stub"
	}
	return a.provider
}

func (a *stubAnalyzer) AnalyzeDocument(ctx context.Context, text, filename string) (model.Analysis, error) {
	if a.err != nil {
		return model.Analysis{}, a.err
	}
	return a.analysis, nil
}

var errAnalyzerDown = errors.New("model endpoint unreachable")
