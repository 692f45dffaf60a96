package store

import "time"

// Store defines the record store operations used by the pipeline.
type Store interface {
	// Upsert inserts a new record at pending, or updates an existing
	// one. A changed fingerprint resets status to pending and clears
	// the previous extraction; an unchanged fingerprint only refreshes
	// size and mtime.
	Upsert(path, fingerprint string, size int64, mtime time.Time, fileType string) error

	// Get retrieves a record by path, or nil if not found.
	Get(path string) (*FileRecord, error)

	// HasChanged reports whether the file is new or its stored
	// fingerprint differs.
	HasChanged(path, fingerprint string) (bool, error)

	// ListByStatus returns all records with the given status.
	ListByStatus(status Status) ([]FileRecord, error)

	// MarkProcessed sets status=processed, stores the extracted text,
	// clears any error, and stamps the processed time.
	MarkProcessed(path, text string) error

	// MarkFailed sets status=failed and stores the error message.
	// Previously extracted text is left untouched.
	MarkFailed(path, errMsg string) error

	// Delete removes the record entirely. No-op for unknown paths.
	Delete(path string) error

	// CountByStatus returns a count of records per status.
	CountByStatus() (map[Status]int, error)

	Close() error
}
