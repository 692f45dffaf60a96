package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filebrain/filebrain/internal/chunker"
	"github.com/filebrain/filebrain/internal/config"
	"github.com/filebrain/filebrain/internal/embeddings"
	"github.com/filebrain/filebrain/internal/extract"
	"github.com/filebrain/filebrain/internal/pipeline"
	"github.com/filebrain/filebrain/internal/store"
	"github.com/filebrain/filebrain/internal/vecstore"
)

func newTestPipeline(t *testing.T) (*pipeline.Pipeline, *store.SQLiteStore, *vecstore.Index) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.NewSQLiteStore(filepath.Join(dir, "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	idx, err := vecstore.Open(filepath.Join(dir, "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	pipe, err := pipeline.New(st, idx, embeddings.NewHashService(16),
		extract.NewRegistry(), chunker.Options{ChunkSize: 100, ChunkOverlap: 20})
	require.NoError(t, err)

	return pipe, st, idx
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
}

// TestSweepIndexesTree tests a full sweep with mixed outcomes.
func TestSweepIndexesTree(t *testing.T) {
	pipe, st, idx := newTestPipeline(t)
	root := t.TempDir()

	writeTree(t, root, map[string]string{
		"notes.md":          "# Fence\nThe cedar quote came in at 2400.",
		"sub/todo.txt":      "Call the contractor back on Monday.",
		"scan.pdf":          "%PDF not extractable",
		".hidden.txt":       "hidden, skipped",
		"node_modules/x.js": "ignored by default patterns",
	})

	cfg := config.DefaultConfig()
	stats, err := Sweep(context.Background(), root, pipe, cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Failed, "the pdf has no extractor")
	assert.GreaterOrEqual(t, stats.Skipped, 1)

	counts, err := st.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[store.StatusProcessed])
	assert.Equal(t, 1, counts[store.StatusFailed])
	assert.Equal(t, 2, idx.Sources())

	// Hidden and ignored files never reached the pipeline.
	rec, err := st.Get(filepath.Join(root, ".hidden.txt"))
	require.NoError(t, err)
	assert.Nil(t, rec)
	rec, err = st.Get(filepath.Join(root, "node_modules/x.js"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

// TestSweepRerunSkipsUnchanged tests fingerprint-based skipping.
func TestSweepRerunSkipsUnchanged(t *testing.T) {
	pipe, _, _ := newTestPipeline(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt": "alpha content.",
		"b.txt": "beta content.",
	})

	cfg := config.DefaultConfig()
	ctx := context.Background()

	first, err := Sweep(ctx, root, pipe, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Processed)

	second, err := Sweep(ctx, root, pipe, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 2, second.Skipped)
}

// TestSweepGitignore tests .gitignore filtering.
func TestSweepGitignore(t *testing.T) {
	pipe, st, _ := newTestPipeline(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.txt":       "keep me.",
		"drop.txt":       "drop me.",
		"drafts/any.txt": "dropped directory.",
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("drop.txt\ndrafts/\n"), 0644))

	stats, err := Sweep(context.Background(), root, pipe, config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	rec, err := st.Get(filepath.Join(root, "drop.txt"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

// TestSweepConfigIgnore tests the config ignore list.
func TestSweepConfigIgnore(t *testing.T) {
	pipe, st, _ := newTestPipeline(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.txt":     "keep me.",
		"journal.txt":  "private.",
		"journal2.txt": "also private.",
	})

	cfg := config.DefaultConfig()
	cfg.Ignore = append(cfg.Ignore, "journal*.txt")

	stats, err := Sweep(context.Background(), root, pipe, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	rec, err := st.Get(filepath.Join(root, "keep.txt"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, store.StatusProcessed, rec.Status)
}

// TestSweepMaxFileSize tests the size limit.
func TestSweepMaxFileSize(t *testing.T) {
	pipe, st, _ := newTestPipeline(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"small.txt": "tiny.",
		"large.txt": "0123456789 0123456789 0123456789.",
	})

	cfg := config.DefaultConfig()
	cfg.Indexing.MaxFileSize = 10

	stats, err := Sweep(context.Background(), root, pipe, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	rec, err := st.Get(filepath.Join(root, "large.txt"))
	require.NoError(t, err)
	assert.Nil(t, rec, "oversized files never reach the pipeline")
}

// TestSweepErrors tests root validation.
func TestSweepErrors(t *testing.T) {
	pipe, _, _ := newTestPipeline(t)
	cfg := config.DefaultConfig()

	t.Run("missing root", func(t *testing.T) {
		_, err := Sweep(context.Background(), "/does/not/exist", pipe, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("root is a file", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "f.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

		_, err := Sweep(context.Background(), file, pipe, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("cancelled context stops the walk", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"a.txt": "content."})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Sweep(ctx, root, pipe, cfg)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
