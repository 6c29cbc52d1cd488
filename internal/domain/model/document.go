package model

import "time"

// DocumentStatus is the lifecycle state of a document record.
// Transitions are processing -> completed|failed; a failed document that is
// retried moves back to processing.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Entities holds the structured values pulled out of extracted text.
// Slices are always non-nil, possibly empty; duplicates and document order
// are preserved.
type Entities struct {
	Dates   []string `json:"dates" firestore:"dates"`
	Emails  []string `json:"emails" firestore:"emails"`
	Phones  []string `json:"phones" firestore:"phones"`
	Amounts []string `json:"amounts" firestore:"amounts"`
}

// PageContent is the per-page slice of the recovered text.
type PageContent struct {
	PageNumber int     `json:"pageNumber" firestore:"pageNumber"`
	Text       string  `json:"text" firestore:"text"`
	Confidence float64 `json:"confidence" firestore:"confidence"`
}

type Metadata struct {
	Pages          int       `json:"pages" firestore:"pages"`
	Language       string    `json:"language" firestore:"language"`
	DocumentType   string    `json:"documentType" firestore:"documentType"`
	FileSize       int64     `json:"fileSize" firestore:"fileSize"`
	InferredType   string    `json:"inferredType,omitempty" firestore:"inferredType"`
	AIConfidence   float64   `json:"aiConfidence" firestore:"aiConfidence"`
	CreatedAt      time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" firestore:"updatedAt"`
	ProcessingTime float64   `json:"processingTime" firestore:"processingTime"`
}

type Content struct {
	FullText    string        `json:"fullText" firestore:"fullText"`
	Pages       []PageContent `json:"pages" firestore:"pages"`
	Entities    Entities      `json:"entities" firestore:"entities"`
	Summary     string        `json:"summary" firestore:"summary"`
	Insights    []string      `json:"insights" firestore:"insights"`
	AIProvider  string        `json:"aiProvider" firestore:"aiProvider"`
	IsOfflineAI bool          `json:"isOfflineAI" firestore:"isOfflineAI"`
}

// DocumentRecord is the durable result of processing one input file. The
// JSON shape of this struct is the external contract: any persisted record
// must deserialize back into it.
type DocumentRecord struct {
	DocumentID      string         `json:"documentId" firestore:"documentId"`
	Filename        string         `json:"filename" firestore:"filename"`
	Status          DocumentStatus `json:"status" firestore:"status"`
	Metadata        Metadata       `json:"metadata" firestore:"metadata"`
	Content         Content        `json:"content" firestore:"content"`
	StorageLocation string         `json:"storageLocation,omitempty" firestore:"storageLocation"`
	Error           string         `json:"error,omitempty" firestore:"error"`
}

// RecordPatch is a partial update applied by Backend.Update. Nil fields are
// left untouched; UpdatedAt is bumped by the backend on every patch.
type RecordPatch struct {
	Status    *DocumentStatus
	Error     *string
	Filename  *string
	FileSize  *int64
	CreatedAt *time.Time
}

// ProcessOptions carries per-call knobs from the caller into the pipeline.
type ProcessOptions struct {
	// DocumentID overrides the generated id; used by retried jobs so all
	// attempts write the same record.
	DocumentID string
	// Filename overrides the name derived from the path (mandatory for
	// buffer input).
	Filename string
	// OCRProvider overrides the configured recognition engine.
	OCRProvider string
	// Language hint passed to the recognition engine.
	Language string
	// DisableAI skips the enrichment pass; the record still completes with
	// "unavailable" sentinels.
	DisableAI bool
}
