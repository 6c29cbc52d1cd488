// Package usecase orchestrates the document pipeline: routing input by
// format, recognizing text, extracting entities, enriching with AI and
// persisting the resulting record.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/domain/ports/adapter"
	engineport "document-ai-pipeline/internal/domain/ports/engine"
	storageport "document-ai-pipeline/internal/domain/ports/storage"
	"document-ai-pipeline/internal/infra/extract"
	"document-ai-pipeline/internal/infra/metrics"
)

// scannedPDFNotice is stored as the full text of a PDF whose text layer is
// empty, so consumers see an explanation rather than a blank document.
const scannedPDFNotice = "[No text could be extracted. This PDF appears to be scanned/image-based.]"

// minReliablePDFChars is the trimmed-text threshold below which a PDF text
// layer is treated as a partial (low confidence) extraction.
const minReliablePDFChars = 50

var imageExts = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "tiff": true, "tif": true,
	"bmp": true, "gif": true, "webp": true,
}

var textExts = map[string]bool{
	"txt": true, "md": true, "csv": true, "json": true,
}

// Processor is the pipeline facade. It owns no state beyond its
// collaborators and is safe for concurrent use.
type Processor struct {
	engines   engineport.Factory
	storage   storageport.Factory
	analyzer  adapter.DocumentAnalyzer
	cfg       config.ProcessingConfig
	aiEnabled bool
	log       *zerolog.Logger
}

func NewProcessor(
	engines engineport.Factory,
	storage storageport.Factory,
	analyzer adapter.DocumentAnalyzer,
	cfg config.ProcessingConfig,
	aiEnabled bool,
	log *zerolog.Logger,
) *Processor {
	return &Processor{
		engines:   engines,
		storage:   storage,
		analyzer:  analyzer,
		cfg:       cfg,
		aiEnabled: aiEnabled,
		log:       log,
	}
}

// ProcessFile runs the full pipeline over a file on disk.
func (p *Processor) ProcessFile(ctx context.Context, filePath string, opts model.ProcessOptions) (*model.DocumentRecord, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", filePath, err)
	}
	filename := opts.Filename
	if filename == "" {
		filename = filepath.Base(filePath)
	}
	return p.process(ctx, data, filename, opts)
}

// ProcessBuffer runs the full pipeline over an in-memory payload. The
// filename drives format routing, so it must carry a real extension.
func (p *Processor) ProcessBuffer(ctx context.Context, buf []byte, filename string, opts model.ProcessOptions) (*model.DocumentRecord, error) {
	if opts.Filename != "" {
		filename = opts.Filename
	}
	return p.process(ctx, buf, filename, opts)
}

func (p *Processor) process(ctx context.Context, data []byte, filename string, opts model.ProcessOptions) (*model.DocumentRecord, error) {
	start := time.Now()

	documentID := opts.DocumentID
	if documentID == "" {
		documentID = uuid.NewString()
	}
	fileSize := int64(len(data))

	if max := int64(p.cfg.MaxFileSizeMB) * 1024 * 1024; max > 0 && fileSize > max {
		return nil, fmt.Errorf("file %s exceeds the %d MB size limit", filename, p.cfg.MaxFileSizeMB)
	}
	if err := p.checkFormatAllowed(filename); err != nil {
		return nil, err
	}

	backend, err := p.storage.Backend(ctx, "")
	if err != nil {
		return nil, err
	}

	// Best effort: make the document visible as processing before the heavy
	// work starts. A storage hiccup here must not kill the run.
	createdAt := p.markProcessing(ctx, backend, documentID, filename, fileSize)

	log := p.log.With().Str("document_id", documentID).Str("filename", filename).Logger()
	log.Info().Int64("size_bytes", fileSize).Msg("processing document")

	result, err := p.recognize(ctx, data, filename, opts)
	if err != nil {
		p.failDocument(ctx, backend, documentID, err)
		metrics.IncDocument(string(model.StatusFailed))
		return nil, err
	}

	entities := ExtractEntities(result.Text)
	analysis := p.analyze(ctx, result.Text, filename, opts.DisableAI, &log)

	elapsed := time.Since(start).Seconds()
	documentType := DetectDocumentType(filename)

	rec := &model.DocumentRecord{
		DocumentID: documentID,
		Filename:   filename,
		Status:     model.StatusCompleted,
		Metadata: model.Metadata{
			Pages:          len(result.Pages),
			Language:       result.Language,
			DocumentType:   documentType,
			FileSize:       fileSize,
			InferredType:   analysis.InferredType,
			AIConfidence:   analysis.Confidence,
			CreatedAt:      createdAt,
			UpdatedAt:      time.Now().UTC(),
			ProcessingTime: elapsed,
		},
		Content: model.Content{
			FullText:    result.Text,
			Pages:       result.PageContents(),
			Entities:    entities,
			Summary:     analysis.Summary,
			Insights:    analysis.Insights,
			AIProvider:  analysis.Provider,
			IsOfflineAI: analysis.Offline,
		},
	}

	receipt, err := backend.Save(ctx, documentID, rec)
	if err != nil {
		metrics.IncDocument(string(model.StatusFailed))
		return nil, err
	}
	rec.StorageLocation = receipt.Location
	if _, err := backend.Save(ctx, documentID, rec); err != nil {
		metrics.IncDocument(string(model.StatusFailed))
		return nil, err
	}

	metrics.IncDocument(string(model.StatusCompleted))
	metrics.ObserveProcessing(documentType, elapsed)
	log.Info().Str("document_type", documentType).Float64("elapsed_s", elapsed).
		Int("pages", rec.Metadata.Pages).Msg("document completed")
	return rec, nil
}

// checkFormatAllowed enforces the configured format allowlist. An empty
// list allows everything the router knows about.
func (p *Processor) checkFormatAllowed(filename string) error {
	if len(p.cfg.SupportedFormats) == 0 {
		return nil
	}
	ext := fileExt(filename)
	for _, allowed := range p.cfg.SupportedFormats {
		if strings.EqualFold(allowed, ext) {
			return nil
		}
	}
	return fmt.Errorf("%w: .%s", domain.ErrUnsupportedFileType, ext)
}

// recognize routes the payload by extension to the matching extraction
// path and normalizes the output.
func (p *Processor) recognize(ctx context.Context, data []byte, filename string, opts model.ProcessOptions) (*model.RecognitionResult, error) {
	ext := fileExt(filename)
	start := time.Now()

	switch {
	case ext == "pdf":
		text, err := extract.PDFText(data)
		if err != nil {
			return nil, err
		}
		return pdfRecognition(text, time.Since(start).Seconds()), nil

	case imageExts[ext]:
		normalized, err := extract.NormalizeImage(data)
		if err != nil {
			return nil, err
		}
		eng, err := p.engines.Engine(ctx, opts.OCRProvider)
		if err != nil {
			return nil, err
		}
		return eng.ExtractTextFromBuffer(ctx, normalized, engineport.Options{Language: opts.Language})

	case ext == "docx":
		text, err := extract.DocxText(data)
		if err != nil {
			return nil, err
		}
		return plainRecognition(text, "docx-extract", time.Since(start).Seconds()), nil

	case ext == "xlsx":
		text, err := extract.XlsxText(data)
		if err != nil {
			return nil, err
		}
		return plainRecognition(text, "xlsx-extract", time.Since(start).Seconds()), nil

	case textExts[ext]:
		text, err := extract.TxtText(data)
		if err != nil {
			return nil, err
		}
		return plainRecognition(text, "text-decode", time.Since(start).Seconds()), nil

	default:
		return nil, fmt.Errorf("%w: .%s", domain.ErrUnsupportedFileType, ext)
	}
}

// pdfRecognition grades a PDF text layer. A healthy layer gets full
// confidence; a very short one is marked partial; an empty one is replaced
// with an explanatory notice at zero confidence.
func pdfRecognition(text string, elapsed float64) *model.RecognitionResult {
	trimmed := strings.TrimSpace(text)
	confidence := 1.0
	switch {
	case trimmed == "":
		text = scannedPDFNotice
		confidence = 0
	case len(trimmed) < minReliablePDFChars:
		confidence = 0.3
	}
	return &model.RecognitionResult{
		Text:       text,
		Confidence: confidence,
		Pages: []model.RecognizedPage{
			{PageNumber: 1, Text: text, Confidence: confidence},
		},
		ProcessingTime: elapsed,
		Engine:         "pdf-text",
	}
}

func plainRecognition(text, engine string, elapsed float64) *model.RecognitionResult {
	return &model.RecognitionResult{
		Text:       text,
		Confidence: 1.0,
		Pages: []model.RecognizedPage{
			{PageNumber: 1, Text: text, Confidence: 1.0},
		},
		ProcessingTime: elapsed,
		Engine:         engine,
	}
}

// analyze runs the enrichment pass. Failures degrade to a diagnostic
// analysis; they never fail the document.
func (p *Processor) analyze(ctx context.Context, text, filename string, disabled bool, log *zerolog.Logger) model.Analysis {
	if disabled || !p.aiEnabled || strings.TrimSpace(text) == "" {
		return model.DisabledAnalysis()
	}
	analysis, err := p.analyzer.AnalyzeDocument(ctx, text, filename)
	if err != nil {
		log.Warn().Err(err).Str("provider", p.analyzer.Provider()).Msg("ai enrichment degraded")
		offline := p.analyzer.Provider() == "ollama"
		return model.UnavailableAnalysis(p.analyzer.Provider(), err.Error(), offline)
	}
	return analysis
}

// markProcessing writes the pre-flight processing status and returns the
// record's creation time (preserved across retries of the same id).
func (p *Processor) markProcessing(ctx context.Context, backend storageport.Backend, documentID, filename string, fileSize int64) time.Time {
	now := time.Now().UTC()

	existing, err := backend.Get(ctx, documentID)
	if err == nil && existing != nil {
		status := model.StatusProcessing
		// A failed record being retried must not expose its old error while
		// it is back in flight.
		noError := ""
		if _, err := backend.Update(ctx, documentID, model.RecordPatch{Status: &status, Error: &noError}); err != nil {
			p.log.Warn().Err(err).Str("document_id", documentID).Msg("processing status update failed")
		}
		if !existing.Metadata.CreatedAt.IsZero() {
			return existing.Metadata.CreatedAt
		}
		return now
	}

	rec := &model.DocumentRecord{
		DocumentID: documentID,
		Filename:   filename,
		Status:     model.StatusProcessing,
		Metadata: model.Metadata{
			FileSize:  fileSize,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	if _, err := backend.Save(ctx, documentID, rec); err != nil {
		p.log.Warn().Err(err).Str("document_id", documentID).Msg("processing status write failed")
	}
	return now
}

func (p *Processor) failDocument(ctx context.Context, backend storageport.Backend, documentID string, cause error) {
	status := model.StatusFailed
	msg := cause.Error()
	if _, err := backend.Update(ctx, documentID, model.RecordPatch{Status: &status, Error: &msg}); err != nil {
		p.log.Warn().Err(err).Str("document_id", documentID).Msg("failed status write failed")
	}
}

// GetDocument returns (nil, nil) for unknown ids, mirroring the backend.
func (p *Processor) GetDocument(ctx context.Context, documentID string) (*model.DocumentRecord, error) {
	backend, err := p.storage.Backend(ctx, "")
	if err != nil {
		return nil, err
	}
	return backend.Get(ctx, documentID)
}

func (p *Processor) ListDocuments(ctx context.Context, opts storageport.ListOptions) ([]*model.DocumentRecord, error) {
	backend, err := p.storage.Backend(ctx, "")
	if err != nil {
		return nil, err
	}
	return backend.List(ctx, opts)
}

func (p *Processor) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	backend, err := p.storage.Backend(ctx, "")
	if err != nil {
		return false, err
	}
	return backend.Delete(ctx, documentID)
}

// Cleanup releases engine and storage resources.
func (p *Processor) Cleanup(ctx context.Context) error {
	return errors.Join(p.engines.Cleanup(ctx), p.storage.Cleanup(ctx))
}

// DetectDocumentType classifies an input by its extension. This is the
// format class stored in metadata; the AI pass infers the semantic type.
func DetectDocumentType(filename string) string {
	ext := fileExt(filename)
	switch {
	case ext == "pdf":
		return "document"
	case imageExts[ext]:
		return "image"
	case ext == "docx":
		return "word-document"
	case ext == "xlsx":
		return "spreadsheet"
	case textExts[ext]:
		return "text-file"
	default:
		return "unknown"
	}
}

func fileExt(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
