package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	storageport "document-ai-pipeline/internal/domain/ports/storage"
)

var _ storageport.Backend = (*PostgresBackend)(nil)

// PostgresBackend keeps document records in a single table with metadata
// and content as JSONB blobs; save is an upsert keyed by document_id.
type PostgresBackend struct {
	cfg  config.PostgresConfig
	log  *zerolog.Logger
	pool *pgxpool.Pool
}

func NewPostgresBackend(cfg config.PostgresConfig, log *zerolog.Logger) *PostgresBackend {
	return &PostgresBackend{cfg: cfg, log: log}
}

func (b *PostgresBackend) Name() string { return "postgres" }

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
    id BIGSERIAL PRIMARY KEY,
    document_id VARCHAR(255) UNIQUE NOT NULL,
    filename VARCHAR(500) NOT NULL DEFAULT '',
    status VARCHAR(50) NOT NULL DEFAULT 'pending',
    metadata JSONB NOT NULL DEFAULT '{}',
    content JSONB NOT NULL DEFAULT '{}',
    storage_location TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at);
`

func (b *PostgresBackend) Initialize(ctx context.Context) error {
	if b.pool != nil {
		return nil
	}
	pool, err := pgxpool.Connect(ctx, b.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", errors.Join(domain.ErrStorage, err))
	}
	if _, err := pool.Exec(ctx, createDocumentsTable); err != nil {
		pool.Close()
		return fmt.Errorf("create documents table: %w", errors.Join(domain.ErrStorage, err))
	}
	b.pool = pool
	b.log.Info().Msg("postgres storage initialized")
	return nil
}

func (b *PostgresBackend) Save(ctx context.Context, documentID string, rec *model.DocumentRecord) (*storageport.SaveReceipt, error) {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata %s: %w", documentID, err)
	}
	content, err := json.Marshal(rec.Content)
	if err != nil {
		return nil, fmt.Errorf("marshal content %s: %w", documentID, err)
	}

	const sql = `
INSERT INTO documents (document_id, filename, status, metadata, content, storage_location, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (document_id) DO UPDATE
  SET filename         = EXCLUDED.filename,
      status           = EXCLUDED.status,
      metadata         = EXCLUDED.metadata,
      content          = EXCLUDED.content,
      storage_location = EXCLUDED.storage_location,
      error            = EXCLUDED.error,
      updated_at       = now();
`
	createdAt := rec.Metadata.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = b.pool.Exec(ctx, sql,
		documentID, rec.Filename, string(rec.Status), metadata, content, rec.StorageLocation, rec.Error, createdAt,
	)
	if err != nil {
		b.logPgError("save", documentID, err)
		return nil, fmt.Errorf("save document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}

	return &storageport.SaveReceipt{
		Location:   b.location(documentID),
		Backend:    b.Name(),
		DocumentID: documentID,
	}, nil
}

func (b *PostgresBackend) Get(ctx context.Context, documentID string) (*model.DocumentRecord, error) {
	const sql = `
SELECT document_id, filename, status, metadata, content, storage_location, error
  FROM documents
 WHERE document_id = $1;
`
	row := b.pool.QueryRow(ctx, sql, documentID)

	var (
		rec               model.DocumentRecord
		status            string
		metadata, content []byte
	)
	err := row.Scan(&rec.DocumentID, &rec.Filename, &status, &metadata, &content, &rec.StorageLocation, &rec.Error)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		b.logPgError("get", documentID, err)
		return nil, fmt.Errorf("get document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}
	rec.Status = model.DocumentStatus(status)
	if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", documentID, err)
	}
	if err := json.Unmarshal(content, &rec.Content); err != nil {
		return nil, fmt.Errorf("decode content %s: %w", documentID, err)
	}
	return &rec, nil
}

func (b *PostgresBackend) Update(ctx context.Context, documentID string, patch model.RecordPatch) (*model.DocumentRecord, error) {
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

func (b *PostgresBackend) Delete(ctx context.Context, documentID string) (bool, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM documents WHERE document_id = $1`, documentID)
	if err != nil {
		b.logPgError("delete", documentID, err)
		return false, fmt.Errorf("delete document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}
	return tag.RowsAffected() > 0, nil
}

func (b *PostgresBackend) Exists(ctx context.Context, documentID string) (bool, error) {
	var count int
	err := b.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("exists document %s: %w", documentID, errors.Join(domain.ErrStorage, err))
	}
	return count > 0, nil
}

// List builds the filter predicate incrementally from the optional
// criteria, then orders by creation time descending.
func (b *PostgresBackend) List(ctx context.Context, opts storageport.ListOptions) ([]*model.DocumentRecord, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT document_id, filename, status, metadata, content, storage_location, error FROM documents WHERE 1=1`)
	args := make([]interface{}, 0, 4)

	if opts.Status != "" {
		args = append(args, string(opts.Status))
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	if opts.DocumentType != "" {
		args = append(args, opts.DocumentType)
		fmt.Fprintf(&sb, " AND metadata->>'documentType' = $%d", len(args))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, opts.Offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	rows, err := b.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", errors.Join(domain.ErrStorage, err))
	}
	defer rows.Close()

	var records []*model.DocumentRecord
	for rows.Next() {
		var (
			rec               model.DocumentRecord
			status            string
			metadata, content []byte
		)
		if err := rows.Scan(&rec.DocumentID, &rec.Filename, &status, &metadata, &content, &rec.StorageLocation, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan document row: %w", errors.Join(domain.ErrStorage, err))
		}
		rec.Status = model.DocumentStatus(status)
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if err := json.Unmarshal(content, &rec.Content); err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (b *PostgresBackend) Cleanup(ctx context.Context) error {
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
		b.log.Info().Msg("postgres connection pool closed")
	}
	return nil
}

func (b *PostgresBackend) location(documentID string) string {
	database := b.cfg.Database
	if database == "" {
		database = "documents"
	}
	return fmt.Sprintf("postgres://%s/documents/%s", database, documentID)
}

func (b *PostgresBackend) logPgError(op, documentID string, err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		b.log.Error().Str("op", op).Str("document_id", documentID).
			Str("sqlstate", pgErr.Code).Str("detail", pgErr.Detail).Msg("postgres error")
		return
	}
	b.log.Error().Err(err).Str("op", op).Str("document_id", documentID).Msg("postgres error")
}
