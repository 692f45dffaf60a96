package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite in WAL mode.
//
// WAL keeps readers and the writer independent: a reader sees the last
// committed state and never a half-written record, and the writer
// appends to the log without waiting for readers. Only writers
// serialize among themselves (wmu); reads take no lock at all.
type SQLiteStore struct {
	db  *sql.DB
	wmu sync.Mutex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a record store at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug("Opened record store", "path", dbPath)

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert inserts a new record at pending, or updates an existing one.
// A changed fingerprint resets the record to pending and clears the
// previous extraction result; an unchanged fingerprint refreshes only
// size, mtime and the updated timestamp.
func (s *SQLiteStore) Upsert(path, fingerprint string, size int64, mtime time.Time, fileType string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	now := timestamp(time.Now())

	var stored string
	err := s.db.QueryRow("SELECT fingerprint FROM files WHERE path = ?", path).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(`
			INSERT INTO files (path, fingerprint, size, mtime, file_type, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, path, fingerprint, size, timestamp(mtime), fileType, StatusPending, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to check existing record: %w", err)
	case stored != fingerprint:
		_, err = s.db.Exec(`
			UPDATE files
			SET fingerprint = ?, size = ?, mtime = ?, file_type = ?, status = ?,
			    extracted_text = NULL, error_message = NULL, processed_at = NULL, updated_at = ?
			WHERE path = ?
		`, fingerprint, size, timestamp(mtime), fileType, StatusPending, now, path)
		if err != nil {
			return fmt.Errorf("failed to reset record: %w", err)
		}
	default:
		_, err = s.db.Exec(`
			UPDATE files SET size = ?, mtime = ?, updated_at = ? WHERE path = ?
		`, size, timestamp(mtime), now, path)
		if err != nil {
			return fmt.Errorf("failed to touch record: %w", err)
		}
	}

	return nil
}

// Get retrieves a record by path, or nil if not found.
func (s *SQLiteStore) Get(path string) (*FileRecord, error) {
	row := s.db.QueryRow(`
		SELECT path, fingerprint, size, mtime, file_type, status,
		       extracted_text, error_message, created_at, updated_at, processed_at
		FROM files WHERE path = ?
	`, path)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

// HasChanged reports whether the file is new or its fingerprint differs.
func (s *SQLiteStore) HasChanged(path, fingerprint string) (bool, error) {
	var stored string
	err := s.db.QueryRow("SELECT fingerprint FROM files WHERE path = ?", path).Scan(&stored)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return stored != fingerprint, nil
}

// ListByStatus returns all records with the given status, ordered by path.
func (s *SQLiteStore) ListByStatus(status Status) ([]FileRecord, error) {
	rows, err := s.db.Query(`
		SELECT path, fingerprint, size, mtime, file_type, status,
		       extracted_text, error_message, created_at, updated_at, processed_at
		FROM files WHERE status = ? ORDER BY path
	`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

// MarkProcessed sets status=processed, stores the extracted text, and
// clears any error from an earlier attempt.
func (s *SQLiteStore) MarkProcessed(path, text string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	now := timestamp(time.Now())
	result, err := s.db.Exec(`
		UPDATE files
		SET status = ?, extracted_text = ?, error_message = NULL, processed_at = ?, updated_at = ?
		WHERE path = ?
	`, StatusProcessed, text, now, now, path)
	if err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	return requireRow(result, path)
}

// MarkFailed sets status=failed with the error message. The extracted
// text from a previously successful run is left untouched.
func (s *SQLiteStore) MarkFailed(path, errMsg string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	now := timestamp(time.Now())
	result, err := s.db.Exec(`
		UPDATE files SET status = ?, error_message = ?, updated_at = ? WHERE path = ?
	`, StatusFailed, errMsg, now, path)
	if err != nil {
		return fmt.Errorf("failed to mark failed: %w", err)
	}
	return requireRow(result, path)
}

// Delete removes a record entirely. No-op for unknown paths.
func (s *SQLiteStore) Delete(path string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := s.db.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// CountByStatus returns a count of records per status. Every status
// appears in the result, zero or not.
func (s *SQLiteStore) CountByStatus() (map[Status]int, error) {
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM files GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int, len(Statuses))
	for _, status := range Statuses {
		counts[status] = 0
	}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*FileRecord, error) {
	var record FileRecord
	var status, mtime, createdAt, updatedAt string
	var text, errMsg, processedAt sql.NullString

	err := row.Scan(
		&record.Path, &record.Fingerprint, &record.Size, &mtime,
		&record.FileType, &status, &text, &errMsg,
		&createdAt, &updatedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Status = Status(status)
	record.Text = text.String
	record.Error = errMsg.String
	record.ModTime, _ = time.Parse(time.RFC3339, mtime)
	record.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	record.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if processedAt.Valid {
		record.ProcessedAt, _ = time.Parse(time.RFC3339, processedAt.String)
	}

	return &record, nil
}

func requireRow(result sql.Result, path string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no record for path: %s", path)
	}
	return nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
