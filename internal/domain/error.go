package domain

import "errors"

var (
	// Routing / selection errors
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrUnsupportedProvider = errors.New("unsupported ocr provider")
	ErrUnsupportedBackend  = errors.New("unsupported storage backend")

	// Declared but absent backends (s3, gcs) fail fast with this.
	ErrBackendNotImplemented = errors.New("storage backend not implemented")

	// Recognition engine errors
	ErrEngineInit      = errors.New("recognition engine initialization failed")
	ErrEngineOperation = errors.New("recognition engine operation failed")
	ErrNoTextDetected  = errors.New("no text detected in document")

	// Persistence errors
	ErrNotFound = errors.New("entity not found")
	ErrStorage  = errors.New("storage failure")

	// AI enrichment degraded; never propagated out of the pipeline.
	ErrAIUnavailable = errors.New("ai analysis unavailable")
)
