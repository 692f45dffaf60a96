// Package pipeline orchestrates the ingestion of one file: change
// detection, extraction, segmentation, embedding, and the paired
// writes to the record store and the vector index.
package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/filebrain/filebrain/internal/chunker"
	"github.com/filebrain/filebrain/internal/embeddings"
	"github.com/filebrain/filebrain/internal/extract"
	"github.com/filebrain/filebrain/internal/store"
	"github.com/filebrain/filebrain/internal/vecstore"
)

// Outcome reports what processing one file did.
type Outcome int

const (
	// OutcomeSkipped means the file was unchanged and nothing was written.
	OutcomeSkipped Outcome = iota
	// OutcomeProcessed means the file was (re)indexed.
	OutcomeProcessed
	// OutcomeFailed means the file's record was marked failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeProcessed:
		return "processed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pipeline runs files through the ingestion steps. Files are processed
// one at a time; a failure in one file never aborts the caller's sweep.
type Pipeline struct {
	store     store.Store
	index     *vecstore.Index
	embedder  embeddings.Service
	registry  *extract.Registry
	chunkOpts chunker.Options
}

// New wires a pipeline and binds the vector index to the embedder's
// model. A mismatch with a previously used model is an error.
func New(st store.Store, idx *vecstore.Index, emb embeddings.Service, reg *extract.Registry, chunkOpts chunker.Options) (*Pipeline, error) {
	if err := idx.EnsureModel(embeddings.ModelID(emb), emb.Dimensions()); err != nil {
		return nil, err
	}
	return &Pipeline{
		store:     st,
		index:     idx,
		embedder:  emb,
		registry:  reg,
		chunkOpts: chunkOpts,
	}, nil
}

// Fingerprint returns the content fingerprint stored in file records.
func Fingerprint(content []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(content))
}

// ProcessFile runs one file through the pipeline. Every failure past
// change detection is absorbed into a failed record; the error is
// logged, never returned, so one bad file cannot stop a sweep.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) Outcome {
	content, err := os.ReadFile(path)
	if err != nil {
		return p.fail(path, nil, fmt.Sprintf("reading file: %v", err))
	}

	fingerprint := Fingerprint(content)

	changed, err := p.store.HasChanged(path, fingerprint)
	if err != nil {
		log.Error("Change check failed", "path", path, "error", err)
		return OutcomeFailed
	}
	if !changed {
		log.Debug("File unchanged", "path", path)
		return OutcomeSkipped
	}

	info, err := os.Stat(path)
	if err != nil {
		return p.fail(path, nil, fmt.Sprintf("reading file: %v", err))
	}

	fileType := extract.FileType(path)
	if err := p.store.Upsert(path, fingerprint, info.Size(), info.ModTime(), fileType); err != nil {
		log.Error("Record upsert failed", "path", path, "error", err)
		return OutcomeFailed
	}

	extractor, err := p.registry.Resolve(fileType)
	if err != nil {
		return p.fail(path, info, err.Error())
	}

	result, err := extractor.Extract(path, content)
	if err != nil {
		return p.fail(path, info, err.Error())
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		// Nothing to index, but the file is accounted for and any
		// passages from a previous version are cleared.
		if err := p.index.ReplaceSource(path, nil); err != nil {
			return p.fail(path, info, fmt.Sprintf("clearing passages: %v", err))
		}
		if err := p.store.MarkProcessed(path, ""); err != nil {
			log.Error("Mark processed failed", "path", path, "error", err)
			return OutcomeFailed
		}
		log.Debug("File empty after extraction", "path", path)
		return OutcomeProcessed
	}

	chunks := chunker.Split(text, p.chunkOpts)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return p.fail(path, info, fmt.Sprintf("embedding: %v", err))
	}
	if len(vectors) != len(chunks) {
		return p.fail(path, info, fmt.Sprintf("embedding: got %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	passages := make([]vecstore.Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = vecstore.Passage{
			SourcePath: path,
			ChunkIndex: i,
			Text:       c.Text,
			Vector:     vectors[i],
		}
	}

	if err := p.index.ReplaceSource(path, passages); err != nil {
		return p.fail(path, info, fmt.Sprintf("indexing passages: %v", err))
	}

	if err := p.store.MarkProcessed(path, text); err != nil {
		log.Error("Mark processed failed", "path", path, "error", err)
		return OutcomeFailed
	}

	log.Debug("File indexed", "path", path, "chunks", len(chunks))
	return OutcomeProcessed
}

// RemoveFile drops a file's record and passages, for filesystem
// deletes. Removing an unknown path is a no-op.
func (p *Pipeline) RemoveFile(path string) error {
	if err := p.index.DeleteBySource(path); err != nil {
		return err
	}
	rec, err := p.store.Get(path)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return p.store.Delete(path)
}

// fail records a failure against the file, creating the record first
// if change detection never reached Upsert.
func (p *Pipeline) fail(path string, info os.FileInfo, msg string) Outcome {
	log.Warn("File failed", "path", path, "error", msg)

	rec, err := p.store.Get(path)
	if err != nil {
		log.Error("Record lookup failed", "path", path, "error", err)
		return OutcomeFailed
	}
	if rec == nil {
		var size int64
		mtime := time.Now().UTC()
		if info != nil {
			size = info.Size()
			mtime = info.ModTime()
		}
		if err := p.store.Upsert(path, "", size, mtime, extract.FileType(path)); err != nil {
			log.Error("Record upsert failed", "path", path, "error", err)
			return OutcomeFailed
		}
	}

	if err := p.store.MarkFailed(path, msg); err != nil {
		log.Error("Failed to record failure", "path", path, "error", err)
	}
	return OutcomeFailed
}
