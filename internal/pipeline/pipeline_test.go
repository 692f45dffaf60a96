package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filebrain/filebrain/internal/chunker"
	"github.com/filebrain/filebrain/internal/embeddings"
	"github.com/filebrain/filebrain/internal/extract"
	"github.com/filebrain/filebrain/internal/store"
	"github.com/filebrain/filebrain/internal/vecstore"
)

type testEnv struct {
	pipe  *Pipeline
	store *store.SQLiteStore
	index *vecstore.Index
	dir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, embeddings.NewHashService(16))
}

func newTestEnvWith(t *testing.T, emb embeddings.Service) *testEnv {
	t.Helper()
	dir := t.TempDir()

	st, err := store.NewSQLiteStore(filepath.Join(dir, "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	idx, err := vecstore.Open(filepath.Join(dir, "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	pipe, err := New(st, idx, emb, extract.NewRegistry(), chunker.Options{ChunkSize: 100, ChunkOverlap: 20})
	require.NoError(t, err)

	return &testEnv{pipe: pipe, store: st, index: idx, dir: dir}
}

func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// failingEmbedder always errors, for bulkhead tests.
type failingEmbedder struct {
	embeddings.Service
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("connection refused")
}

// TestProcessFileIndexes tests the happy path end to end.
func TestProcessFileIndexes(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	text := strings.TrimSpace(strings.Repeat("A sentence about gardening. ", 20))
	path := e.writeFile(t, "notes.txt", text)

	outcome := e.pipe.ProcessFile(ctx, path)
	assert.Equal(t, OutcomeProcessed, outcome)

	rec, err := e.store.Get(path)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, store.StatusProcessed, rec.Status)
	assert.Equal(t, text, rec.Text)
	assert.Equal(t, "txt", rec.FileType)
	assert.True(t, strings.HasPrefix(rec.Fingerprint, "sha256:"))

	assert.Greater(t, e.index.Count(), 1, "long text should produce multiple passages")
	assert.Equal(t, 1, e.index.Sources())
}

// TestProcessFileUnchanged tests that a second pass writes nothing.
func TestProcessFileUnchanged(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	path := e.writeFile(t, "notes.txt", "Stable content that does not change.")

	require.Equal(t, OutcomeProcessed, e.pipe.ProcessFile(ctx, path))
	before, err := e.store.Get(path)
	require.NoError(t, err)
	passages := e.index.Count()

	assert.Equal(t, OutcomeSkipped, e.pipe.ProcessFile(ctx, path))

	after, err := e.store.Get(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "skip must leave the record untouched")
	assert.Equal(t, passages, e.index.Count())
}

// TestProcessFileChanged tests re-indexing after an edit.
func TestProcessFileChanged(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	path := e.writeFile(t, "notes.txt", "Original thoughts on the fence.")
	require.Equal(t, OutcomeProcessed, e.pipe.ProcessFile(ctx, path))

	e.writeFile(t, "notes.txt", "Revised thoughts after the estimate arrived.")
	assert.Equal(t, OutcomeProcessed, e.pipe.ProcessFile(ctx, path))

	rec, err := e.store.Get(path)
	require.NoError(t, err)
	assert.Contains(t, rec.Text, "Revised")

	results, err := e.index.Search(mustEmbed(t, "Revised thoughts after the estimate arrived."), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].ChunkText, "Revised")
}

func mustEmbed(t *testing.T, text string) []float32 {
	t.Helper()
	vec, err := embeddings.NewHashService(16).Embed(context.Background(), text)
	require.NoError(t, err)
	return vec
}

// TestProcessFileNoExtractor tests the unknown-type failure path.
func TestProcessFileNoExtractor(t *testing.T) {
	e := newTestEnv(t)

	path := e.writeFile(t, "scan.pdf", "%PDF-1.4 pretend")
	outcome := e.pipe.ProcessFile(context.Background(), path)
	assert.Equal(t, OutcomeFailed, outcome)

	rec, err := e.store.Get(path)
	require.NoError(t, err)
	require.NotNil(t, rec, "failure must still create the record")
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "no extractor for file type")
	assert.Equal(t, 0, e.index.Count())
}

// TestProcessFileBinaryContent tests extraction failure isolation.
func TestProcessFileBinaryContent(t *testing.T) {
	e := newTestEnv(t)

	path := e.writeFile(t, "blob.txt", "text\x00with\x00nulls")
	assert.Equal(t, OutcomeFailed, e.pipe.ProcessFile(context.Background(), path))

	rec, err := e.store.Get(path)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "binary")
}

// TestProcessFileEmptyText tests the extracted-but-empty case.
func TestProcessFileEmptyText(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// Index real content first so stale passages exist.
	path := e.writeFile(t, "notes.txt", "Some content worth indexing.")
	require.Equal(t, OutcomeProcessed, e.pipe.ProcessFile(ctx, path))
	require.Equal(t, 1, e.index.Count())

	// Truncate to whitespace only.
	e.writeFile(t, "notes.txt", "   \n\t\n")
	assert.Equal(t, OutcomeProcessed, e.pipe.ProcessFile(ctx, path))

	rec, err := e.store.Get(path)
	require.NoError(t, err)
	assert.Equal(t, store.StatusProcessed, rec.Status)
	assert.Empty(t, rec.Text)
	assert.Equal(t, 0, e.index.Count(), "stale passages must be cleared")
}

// TestProcessFileEmbeddingFailure tests that prior passages survive a
// transient embedding failure.
func TestProcessFileEmbeddingFailure(t *testing.T) {
	good := newTestEnv(t)
	ctx := context.Background()

	path := good.writeFile(t, "notes.txt", "First version of the notes.")
	require.Equal(t, OutcomeProcessed, good.pipe.ProcessFile(ctx, path))
	require.Equal(t, 1, good.index.Count())

	// Swap in a broken embedder over the same stores.
	broken, err := New(good.store, good.index,
		&failingEmbedder{Service: embeddings.NewHashService(16)},
		extract.NewRegistry(), chunker.Options{ChunkSize: 100, ChunkOverlap: 20})
	require.NoError(t, err)

	good.writeFile(t, "notes.txt", "Second version that will fail to embed.")
	assert.Equal(t, OutcomeFailed, broken.ProcessFile(ctx, path))

	rec, err := good.store.Get(path)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "embedding")
	assert.Equal(t, 1, good.index.Count(), "old passages must survive the failure")
}

// TestFailedFileNotRetriedUntilChanged tests failure short-circuiting.
func TestFailedFileNotRetriedUntilChanged(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	path := e.writeFile(t, "blob.txt", "bad\x00bytes")
	require.Equal(t, OutcomeFailed, e.pipe.ProcessFile(ctx, path))

	// Same content again: fingerprint matches, so the failure is not retried.
	assert.Equal(t, OutcomeSkipped, e.pipe.ProcessFile(ctx, path))

	// Changed content gets a fresh attempt.
	e.writeFile(t, "blob.txt", "clean text now. all good.")
	assert.Equal(t, OutcomeProcessed, e.pipe.ProcessFile(ctx, path))

	rec, err := e.store.Get(path)
	require.NoError(t, err)
	assert.Equal(t, store.StatusProcessed, rec.Status)
	assert.Empty(t, rec.Error)
}

// TestProcessFileUnreadable tests the read failure path.
func TestProcessFileUnreadable(t *testing.T) {
	e := newTestEnv(t)

	path := filepath.Join(e.dir, "missing.txt")
	assert.Equal(t, OutcomeFailed, e.pipe.ProcessFile(context.Background(), path))

	rec, err := e.store.Get(path)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "reading file")
}

// TestRemoveFile tests record and passage removal.
func TestRemoveFile(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	path := e.writeFile(t, "notes.txt", "Content that will be deleted.")
	require.Equal(t, OutcomeProcessed, e.pipe.ProcessFile(ctx, path))

	require.NoError(t, e.pipe.RemoveFile(path))

	rec, err := e.store.Get(path)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 0, e.index.Count())

	// Removing an unknown path is a no-op.
	assert.NoError(t, e.pipe.RemoveFile(filepath.Join(e.dir, "never-seen.txt")))
}

// TestFingerprint tests the fingerprint format.
func TestFingerprint(t *testing.T) {
	fp := Fingerprint([]byte("hello"))
	assert.True(t, strings.HasPrefix(fp, "sha256:"))
	assert.Len(t, fp, len("sha256:")+64)
	assert.Equal(t, fp, Fingerprint([]byte("hello")))
	assert.NotEqual(t, fp, Fingerprint([]byte("hello!")))
}

// TestNewRejectsModelMismatch tests the index binding guard.
func TestNewRejectsModelMismatch(t *testing.T) {
	dir := t.TempDir()

	st, err := store.NewSQLiteStore(filepath.Join(dir, "records.db"))
	require.NoError(t, err)
	defer st.Close()

	idx, err := vecstore.Open(filepath.Join(dir, "vectors.db"))
	require.NoError(t, err)
	defer idx.Close()

	_, err = New(st, idx, embeddings.NewHashService(16), extract.NewRegistry(), chunker.DefaultOptions())
	require.NoError(t, err)

	_, err = New(st, idx, embeddings.NewHashService(32), extract.NewRegistry(), chunker.DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash/xxh64-16")
}
