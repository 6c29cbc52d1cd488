package model

import "time"

// JobState is the queue-side lifecycle of one asynchronous processing
// attempt set. Jobs are transient bookkeeping; the document record is the
// durable artifact.
type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobStalled   JobState = "stalled"
)

type JobType string

const (
	JobTypeFile   JobType = "file"
	JobTypeBuffer JobType = "buffer"
)

type Job struct {
	ID       string         `json:"id"`
	Type     JobType        `json:"type"`
	FilePath string         `json:"filePath,omitempty"`
	Payload  []byte         `json:"payload,omitempty"`
	Filename string         `json:"filename,omitempty"`
	Options  ProcessOptions `json:"options"`

	State        JobState        `json:"state"`
	Attempts     int             `json:"attempts"`
	Result       *DocumentRecord `json:"result,omitempty"`
	FailedReason string          `json:"failedReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// JobStatus is the polling view returned to callers. Unknown ids yield
// Status "not_found" instead of an error.
type JobStatus struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Progress     int             `json:"progress"`
	Result       *DocumentRecord `json:"result,omitempty"`
	FailedReason string          `json:"failedReason,omitempty"`
}

// QueueStats is a per-state census of the queue.
type QueueStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Stalled   int `json:"stalled"`
	Total     int `json:"total"`
}
