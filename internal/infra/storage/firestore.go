package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	storageport "document-ai-pipeline/internal/domain/ports/storage"
)

var _ storageport.Backend = (*FirestoreBackend)(nil)

// FirestoreBackend stores one document per record in a collection; the
// document path is the unique key, so Set gives upsert semantics for free.
// List pushes filter, sort and pagination to the server.
type FirestoreBackend struct {
	cfg    config.FirestoreConfig
	log    *zerolog.Logger
	client *firestore.Client
}

func NewFirestoreBackend(cfg config.FirestoreConfig, log *zerolog.Logger) *FirestoreBackend {
	return &FirestoreBackend{cfg: cfg, log: log}
}

func (b *FirestoreBackend) Name() string { return "firestore" }

func (b *FirestoreBackend) Initialize(ctx context.Context) error {
	if b.client != nil {
		return nil
	}
	client, err := firestore.NewClient(ctx, b.cfg.ProjectID)
	if err != nil {
		return fmt.Errorf("connect firestore: %w", errors.Join(domain.ErrStorage, err))
	}
	b.client = client
	b.log.Info().Str("project", b.cfg.ProjectID).Str("collection", b.cfg.Collection).Msg("firestore storage initialized")
	return nil
}

func (b *FirestoreBackend) col() *firestore.CollectionRef {
	return b.client.Collection(b.cfg.Collection)
}

func (b *FirestoreBackend) Save(ctx context.Context, documentID string, rec *model.DocumentRecord) (*storageport.SaveReceipt, error) {
	if _, err := b.col().Doc(documentID).Set(ctx, rec); err != nil {
		return nil, fmt.Errorf("save document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}
	return &storageport.SaveReceipt{
		Location:   fmt.Sprintf("firestore://%s/%s/%s", b.cfg.ProjectID, b.cfg.Collection, documentID),
		Backend:    b.Name(),
		DocumentID: documentID,
	}, nil
}

func (b *FirestoreBackend) Get(ctx context.Context, documentID string) (*model.DocumentRecord, error) {
	snap, err := b.col().Doc(documentID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}
	var rec model.DocumentRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", documentID, err)
	}
	return &rec, nil
}

func (b *FirestoreBackend) Update(ctx context.Context, documentID string, patch model.RecordPatch) (*model.DocumentRecord, error) {
	rec, err := b.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("update document %s: %w", documentID, domain.ErrNotFound)
	}
	applyPatch(rec, patch, time.Now().UTC())
	if _, err := b.Save(ctx, documentID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (b *FirestoreBackend) Delete(ctx context.Context, documentID string) (bool, error) {
	exists, err := b.Exists(ctx, documentID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if _, err := b.col().Doc(documentID).Delete(ctx); err != nil {
		return false, fmt.Errorf("delete document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}
	return true, nil
}

func (b *FirestoreBackend) Exists(ctx context.Context, documentID string) (bool, error) {
	snap, err := b.col().Doc(documentID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("exists document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}
	return snap.Exists(), nil
}

func (b *FirestoreBackend) List(ctx context.Context, opts storageport.ListOptions) ([]*model.DocumentRecord, error) {
	q := b.col().Query
	if opts.Status != "" {
		q = q.Where("status", "==", string(opts.Status))
	}
	if opts.DocumentType != "" {
		q = q.Where("metadata.documentType", "==", opts.DocumentType)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q = q.OrderBy("metadata.createdAt", firestore.Desc).Offset(opts.Offset).Limit(limit)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var records []*model.DocumentRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", errors.Join(domain.ErrStorage, err))
		}
		var rec model.DocumentRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", snap.Ref.ID, err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

func (b *FirestoreBackend) Cleanup(ctx context.Context) error {
	if b.client != nil {
		err := b.client.Close()
		b.client = nil
		b.log.Info().Msg("firestore client closed")
		return err
	}
	return nil
}
