package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain"
	"document-ai-pipeline/internal/domain/model"
	storageport "document-ai-pipeline/internal/domain/ports/storage"
)

func testProcessingConfig() config.ProcessingConfig {
	return config.ProcessingConfig{
		MaxFileSizeMB: 50,
		Concurrency:   1,
		JobAttempts:   3,
	}
}

func newTestProcessor(backend *memBackend, analyzer *stubAnalyzer, aiEnabled bool) *Processor {
	engines := &stubEngineFactory{engine: &stubEngine{
		result: &model.RecognitionResult{
			Text:       "scanned page text",
			Confidence: 0.9,
			Pages:      []model.RecognizedPage{{PageNumber: 1, Text: "scanned page text", Confidence: 0.9}},
			Engine:     "stub",
		},
	}}
	return NewProcessor(engines, &memBackendFactory{backend: backend}, analyzer, testProcessingConfig(), aiEnabled, newTestLogger())
}

func TestProcessBuffer_TextDocument(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	proc := newTestProcessor(backend, &stubAnalyzer{}, false)

	input := "Contact: jane@x.com, paid $42.00 on 01/02/2023"
	rec, err := proc.ProcessBuffer(ctx, []byte(input), "notes.txt", model.ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessBuffer: %v", err)
	}

	if rec.Status != model.StatusCompleted {
		t.Errorf("status = %s, want completed", rec.Status)
	}
	if rec.Content.FullText != input {
		t.Errorf("fullText = %q, want %q", rec.Content.FullText, input)
	}
	if rec.Metadata.DocumentType != "text-file" {
		t.Errorf("documentType = %q, want text-file", rec.Metadata.DocumentType)
	}
	if rec.Metadata.Pages != 1 {
		t.Errorf("pages = %d, want 1", rec.Metadata.Pages)
	}
	if got := rec.Content.Entities.Emails; len(got) != 1 || got[0] != "jane@x.com" {
		t.Errorf("emails = %v", got)
	}
	if got := rec.Content.Entities.Amounts; len(got) != 1 || got[0] != "$42.00" {
		t.Errorf("amounts = %v", got)
	}
	if got := rec.Content.Entities.Dates; len(got) != 1 || got[0] != "01/02/2023" {
		t.Errorf("dates = %v", got)
	}

	// AI disabled: the record still completes with the disabled sentinels.
	disabled := model.DisabledAnalysis()
	if rec.Content.Summary != disabled.Summary || rec.Content.AIProvider != disabled.Provider {
		t.Errorf("analysis = %q/%q, want disabled sentinels", rec.Content.Summary, rec.Content.AIProvider)
	}

	// The persisted record must round-trip to what the caller got.
	stored, err := backend.Get(ctx, rec.DocumentID)
	if err != nil || stored == nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if stored.Content.FullText != rec.Content.FullText || stored.Status != rec.Status {
		t.Errorf("stored record diverges from returned record")
	}
	if stored.StorageLocation == "" {
		t.Errorf("stored record has no storage location")
	}
}

func TestProcessBuffer_EmptyTextFileCompletes(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	proc := newTestProcessor(backend, &stubAnalyzer{}, false)

	rec, err := proc.ProcessBuffer(ctx, []byte{}, "blank.txt", model.ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessBuffer: %v", err)
	}
	if rec.Status != model.StatusCompleted {
		t.Errorf("status = %s, want completed", rec.Status)
	}
	if rec.Content.FullText != "" {
		t.Errorf("fullText = %q, want empty", rec.Content.FullText)
	}
	e := rec.Content.Entities
	if e.Dates == nil || e.Emails == nil || e.Phones == nil || e.Amounts == nil {
		t.Errorf("entity slices must be non-nil: %+v", e)
	}
	if len(e.Dates)+len(e.Emails)+len(e.Phones)+len(e.Amounts) != 0 {
		t.Errorf("entities = %+v, want none", e)
	}
}

func TestProcess_RetryClearsFailedError(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	proc := newTestProcessor(backend, &stubAnalyzer{}, false)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	seed := &model.DocumentRecord{
		DocumentID: "doc-r",
		Filename:   "slides.pptx",
		Status:     model.StatusFailed,
		Error:      "unsupported file type: .pptx",
		Metadata:   model.Metadata{CreatedAt: created},
	}
	if _, err := backend.Save(ctx, "doc-r", seed); err != nil {
		t.Fatal(err)
	}

	// The pre-flight status write must scrub the old error, not just flip
	// the status; readers mid-retry see processing with no error.
	proc.markProcessing(ctx, backend, "doc-r", "notes.txt", 5)
	mid, err := backend.Get(ctx, "doc-r")
	if err != nil || mid == nil {
		t.Fatalf("Get mid-retry: %v", err)
	}
	if mid.Status != model.StatusProcessing {
		t.Errorf("mid-retry status = %s, want processing", mid.Status)
	}
	if mid.Error != "" {
		t.Errorf("mid-retry error = %q, want empty", mid.Error)
	}

	rec, err := proc.ProcessBuffer(ctx, []byte("hello"), "notes.txt", model.ProcessOptions{DocumentID: "doc-r"})
	if err != nil {
		t.Fatalf("ProcessBuffer: %v", err)
	}
	if rec.Status != model.StatusCompleted || rec.Error != "" {
		t.Errorf("retried record = %s/%q, want completed with no error", rec.Status, rec.Error)
	}
	if !rec.Metadata.CreatedAt.Equal(created) {
		t.Errorf("createdAt = %v, want preserved %v", rec.Metadata.CreatedAt, created)
	}
}

func TestProcessFile_ReadsFromDisk(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	proc := newTestProcessor(backend, &stubAnalyzer{}, false)

	dir := t.TempDir()
	path := filepath.Join(dir, "report.md")
	if err := os.WriteFile(path, []byte("# Quarterly Report\nRevenue up."), 0o644); err != nil {
		t.Fatal(err)
	}

	rec, err := proc.ProcessFile(ctx, path, model.ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if rec.Filename != "report.md" {
		t.Errorf("filename = %q, want report.md", rec.Filename)
	}
	if rec.Metadata.DocumentType != "text-file" {
		t.Errorf("documentType = %q, want text-file", rec.Metadata.DocumentType)
	}
	if !strings.Contains(rec.Content.FullText, "Quarterly Report") {
		t.Errorf("fullText lost content: %q", rec.Content.FullText)
	}
}

func TestProcessBuffer_ImageRoutesToEngine(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	engine := &stubEngine{result: &model.RecognitionResult{
		Text:       "OCR TEXT",
		Confidence: 0.8,
		Pages:      []model.RecognizedPage{{PageNumber: 1, Text: "OCR TEXT", Confidence: 0.8}},
		Engine:     "stub",
	}}
	proc := NewProcessor(
		&stubEngineFactory{engine: engine},
		&memBackendFactory{backend: backend},
		&stubAnalyzer{}, testProcessingConfig(), false, newTestLogger(),
	)

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	rec, err := proc.ProcessBuffer(ctx, buf.Bytes(), "scan.png", model.ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessBuffer: %v", err)
	}
	if engine.calls != 1 {
		t.Errorf("engine calls = %d, want 1", engine.calls)
	}
	if rec.Content.FullText != "OCR TEXT" {
		t.Errorf("fullText = %q", rec.Content.FullText)
	}
	if rec.Metadata.DocumentType != "image" {
		t.Errorf("documentType = %q, want image", rec.Metadata.DocumentType)
	}
}

func TestProcess_AIFailureStillCompletes(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	analyzer := &stubAnalyzer{provider: "ollama", err: errAnalyzerDown}
	proc := newTestProcessor(backend, analyzer, true)

	rec, err := proc.ProcessBuffer(ctx, []byte("plenty of text here"), "doc.txt", model.ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessBuffer: %v", err)
	}
	if rec.Status != model.StatusCompleted {
		t.Errorf("status = %s, want completed despite ai failure", rec.Status)
	}
	if rec.Metadata.InferredType != "Inference Failed" {
		t.Errorf("inferredType = %q", rec.Metadata.InferredType)
	}
	if !strings.Contains(rec.Content.Summary, errAnalyzerDown.Error()) {
		t.Errorf("summary %q does not carry the failure reason", rec.Content.Summary)
	}
	if !rec.Content.IsOfflineAI {
		t.Errorf("ollama failures should stay flagged offline")
	}
}

func TestProcess_UnsupportedExtension(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	proc := newTestProcessor(backend, &stubAnalyzer{}, false)

	opts := model.ProcessOptions{DocumentID: "doc-1"}
	_, err := proc.ProcessBuffer(ctx, []byte("x"), "slides.pptx", opts)
	if !errors.Is(err, domain.ErrUnsupportedFileType) {
		t.Fatalf("err = %v, want ErrUnsupportedFileType", err)
	}
	if !strings.Contains(err.Error(), ".pptx") {
		t.Errorf("error %q does not name the extension", err)
	}

	// Failure must be visible in storage.
	stored, _ := backend.Get(ctx, "doc-1")
	if stored == nil || stored.Status != model.StatusFailed {
		t.Errorf("stored status = %+v, want failed", stored)
	}
	if stored != nil && !strings.Contains(stored.Error, ".pptx") {
		t.Errorf("stored error %q does not name the extension", stored.Error)
	}
}

func TestProcess_FileSizeLimit(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	proc := NewProcessor(
		&stubEngineFactory{engine: &stubEngine{}},
		&memBackendFactory{backend: backend},
		&stubAnalyzer{},
		config.ProcessingConfig{MaxFileSizeMB: 1},
		false, newTestLogger(),
	)

	big := make([]byte, 2*1024*1024)
	_, err := proc.ProcessBuffer(ctx, big, "big.txt", model.ProcessOptions{})
	if err == nil || !strings.Contains(err.Error(), "size limit") {
		t.Fatalf("err = %v, want size limit error", err)
	}
}

func TestPDFRecognition(t *testing.T) {
	t.Run("healthy text layer gets full confidence", func(t *testing.T) {
		text := strings.Repeat("word ", 20)
		r := pdfRecognition(text, 0.1)
		if r.Confidence != 1.0 {
			t.Errorf("confidence = %v, want 1.0", r.Confidence)
		}
		if r.Text != text {
			t.Errorf("text changed")
		}
	})

	t.Run("short text layer is marked partial", func(t *testing.T) {
		r := pdfRecognition("tiny", 0.1)
		if r.Confidence != 0.3 {
			t.Errorf("confidence = %v, want 0.3", r.Confidence)
		}
	})

	t.Run("empty text layer becomes the scanned notice", func(t *testing.T) {
		r := pdfRecognition("  \n\t ", 0.1)
		if r.Confidence != 0 {
			t.Errorf("confidence = %v, want 0", r.Confidence)
		}
		if r.Text != scannedPDFNotice {
			t.Errorf("text = %q, want scanned notice", r.Text)
		}
		if len(r.Pages) != 1 || r.Pages[0].Text != scannedPDFNotice {
			t.Errorf("page text not replaced")
		}
	})
}

func TestDetectDocumentType(t *testing.T) {
	cases := map[string]string{
		"a.pdf":      "document",
		"b.PNG":      "image",
		"c.jpeg":     "image",
		"d.docx":     "word-document",
		"e.xlsx":     "spreadsheet",
		"f.txt":      "text-file",
		"g.md":       "text-file",
		"h.csv":      "text-file",
		"i.json":     "text-file",
		"j.xyz":      "unknown",
		"noext":      "unknown",
		"deck.pptx":  "unknown",
		"scan.webp":  "image",
		"old.tiff":   "image",
		"photo.tif":  "image",
		"legacy.bmp": "image",
	}
	for filename, want := range cases {
		if got := DetectDocumentType(filename); got != want {
			t.Errorf("DetectDocumentType(%q) = %q, want %q", filename, got, want)
		}
	}
}

func TestDocumentLifecycleOps(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	proc := newTestProcessor(backend, &stubAnalyzer{}, false)

	rec, err := proc.ProcessBuffer(ctx, []byte("hello"), "a.txt", model.ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}

	got, err := proc.GetDocument(ctx, rec.DocumentID)
	if err != nil || got == nil {
		t.Fatalf("GetDocument: %v %v", got, err)
	}

	missing, err := proc.GetDocument(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetDocument(absent) = %v, %v; want nil, nil", missing, err)
	}

	list, err := proc.ListDocuments(ctx, storageport.ListOptions{})
	if err != nil || len(list) != 1 {
		t.Errorf("ListDocuments = %d records, err %v", len(list), err)
	}

	removed, err := proc.DeleteDocument(ctx, rec.DocumentID)
	if err != nil || !removed {
		t.Errorf("DeleteDocument = %v, %v", removed, err)
	}
	removed, err = proc.DeleteDocument(ctx, rec.DocumentID)
	if err != nil || removed {
		t.Errorf("second DeleteDocument = %v, %v; want false, nil", removed, err)
	}
}
