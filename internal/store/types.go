// Package store tracks per-file state through the ingestion pipeline.
package store

import "time"

// Status is the lifecycle state of a file in the pipeline.
type Status string

const (
	// StatusPending marks a file seen but not yet (re)processed.
	StatusPending Status = "pending"
	// StatusProcessed marks a file whose text has been extracted and indexed.
	StatusProcessed Status = "processed"
	// StatusFailed marks a file whose last pipeline attempt failed.
	StatusFailed Status = "failed"
)

// Statuses lists all lifecycle states in display order.
var Statuses = []Status{StatusPending, StatusProcessed, StatusFailed}

// FileRecord is a single file's identity and processing state.
// The absolute path is the identity key; no two records share a path.
type FileRecord struct {
	Path        string    `json:"path"`
	Fingerprint string    `json:"fingerprint"` // sha256:<hex> of full content
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"` // informational only, never used for change detection
	FileType    string    `json:"file_type"`
	Status      Status    `json:"status"`
	Text        string    `json:"text,omitempty"`  // extracted text, empty until processed
	Error       string    `json:"error,omitempty"` // message from the last failed attempt
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ProcessedAt time.Time `json:"processed_at,omitempty"`
}
