// Package extract turns raw file bytes into indexable text. Extractors
// are registered per file type tag (lowercased extension without the
// dot); the registry is the extension point for new formats.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoExtractor indicates no registered extractor handles a file type.
var ErrNoExtractor = errors.New("no extractor for file type")

// Error is a typed extraction failure carrying the source path.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is the output of a successful extraction.
type Result struct {
	Text     string
	Metadata map[string]string
}

// Extractor converts one file's content to text.
type Extractor interface {
	// Types returns the file type tags this extractor handles.
	Types() []string

	// Extract converts content to text. path is for error context only.
	Extract(path string, content []byte) (*Result, error)
}

// Registry resolves extractors by file type tag.
type Registry struct {
	byType map[string]Extractor
}

// NewRegistry returns a registry with the built-in extractors
// (plaintext and code) registered.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Extractor)}
	r.Register(NewPlainTextExtractor())
	r.Register(NewCodeExtractor())
	return r
}

// Register adds an extractor for each type it reports. Later
// registrations win, so callers can override the built-ins.
func (r *Registry) Register(e Extractor) {
	for _, t := range e.Types() {
		r.byType[t] = e
	}
}

// Resolve returns the extractor for a file type tag, or ErrNoExtractor.
func (r *Registry) Resolve(fileType string) (Extractor, error) {
	e, ok := r.byType[fileType]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoExtractor, fileType)
	}
	return e, nil
}

// FileType returns the type tag for a path: the lowercased extension
// without the dot, or the lowercased filename for extensionless files
// like Makefile.
func FileType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return strings.ToLower(filepath.Base(path))
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Types returns all registered file type tags, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
