package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filebrain/filebrain/internal/embeddings"
	"github.com/filebrain/filebrain/internal/llm"
	"github.com/filebrain/filebrain/internal/vecstore"
)

// fakeLLM returns a scripted answer and records the prompt it saw.
type fakeLLM struct {
	answer   string
	err      error
	messages []llm.Message
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, opts llm.CompletionOptions) (string, error) {
	f.messages = messages
	return f.answer, f.err
}

func (f *fakeLLM) Provider() llm.Provider { return "fake" }
func (f *fakeLLM) ModelName() string      { return "scripted" }

func newTestCorpus(t *testing.T, emb embeddings.Service) *vecstore.Index {
	t.Helper()
	idx, err := vecstore.Open(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	require.NoError(t, idx.EnsureModel(embeddings.ModelID(emb), emb.Dimensions()))
	t.Cleanup(func() { idx.Close() })

	ctx := context.Background()
	for path, text := range map[string]string{
		"/notes/fence.md":  "The contractor quoted 2400 for the cedar fence.",
		"/notes/garden.md": "Tomatoes go in the raised bed after the last frost.",
		"/docs/lease.txt":  "The deposit is returned within 30 days of moving out.",
	} {
		vec, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		require.NoError(t, idx.Add(path, 0, text, vec))
	}
	return idx
}

// TestSearch tests search-only retrieval.
func TestSearch(t *testing.T) {
	emb := embeddings.NewHashService(16)
	idx := newTestCorpus(t, emb)

	engine, err := New(idx, emb, nil)
	require.NoError(t, err)

	// The hash embedder only matches exact text, so query with a
	// stored passage verbatim.
	results, err := engine.Search(context.Background(), "The contractor quoted 2400 for the cedar fence.", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "/notes/fence.md", results[0].SourcePath)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

// TestAskBuildsCitedPrompt tests prompt assembly and citation format.
func TestAskBuildsCitedPrompt(t *testing.T) {
	emb := embeddings.NewHashService(16)
	idx := newTestCorpus(t, emb)

	fake := &fakeLLM{answer: "The fence costs 2400 [/notes/fence.md]."}
	engine, err := New(idx, emb, fake)
	require.NoError(t, err)

	answer, err := engine.Ask(context.Background(), "how much is the fence")
	require.NoError(t, err)

	require.Len(t, fake.messages, 2)
	assert.Equal(t, "system", fake.messages[0].Role)
	assert.Contains(t, fake.messages[0].Content, "square brackets")
	assert.Contains(t, fake.messages[1].Content, "FILE EXCERPTS:")
	assert.Contains(t, fake.messages[1].Content, "QUESTION: how much is the fence")

	// Every retrieved passage appears labelled with its path.
	for _, r := range answer.Retrieved {
		assert.Contains(t, fake.messages[1].Content, "["+r.SourcePath+"]:")
	}
}

// TestAskVerifiesCitations tests splitting of cited paths.
func TestAskVerifiesCitations(t *testing.T) {
	emb := embeddings.NewHashService(16)
	idx := newTestCorpus(t, emb)

	t.Run("valid citations are collected in order", func(t *testing.T) {
		fake := &fakeLLM{answer: "Costs 2400 [/notes/fence.md]. Planting waits for frost [/notes/garden.md]. " +
			"Again [/notes/fence.md]."}
		engine, err := New(idx, emb, fake, WithContextLimit(3))
		require.NoError(t, err)

		answer, err := engine.Ask(context.Background(), "everything")
		require.NoError(t, err)
		assert.Equal(t, []string{"/notes/fence.md", "/notes/garden.md"}, answer.Sources,
			"sources deduplicate and keep first-citation order")
		assert.Empty(t, answer.Uncited)
	})

	t.Run("invented paths are surfaced", func(t *testing.T) {
		fake := &fakeLLM{answer: "As stated in [/made/up/file.txt], the fence is free."}
		engine, err := New(idx, emb, fake)
		require.NoError(t, err)

		answer, err := engine.Ask(context.Background(), "price")
		require.NoError(t, err)
		assert.Empty(t, answer.Sources)
		assert.Equal(t, []string{"/made/up/file.txt"}, answer.Uncited)
	})

	t.Run("non-path brackets are ignored", func(t *testing.T) {
		fake := &fakeLLM{answer: "See [1] and [note] for details [/notes/fence.md]."}
		engine, err := New(idx, emb, fake)
		require.NoError(t, err)

		answer, err := engine.Ask(context.Background(), "price")
		require.NoError(t, err)
		assert.Equal(t, []string{"/notes/fence.md"}, answer.Sources)
		assert.Empty(t, answer.Uncited)
	})
}

// TestAskEmptyIndex tests the no-passages short circuit.
func TestAskEmptyIndex(t *testing.T) {
	emb := embeddings.NewHashService(16)
	idx, err := vecstore.Open(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	defer idx.Close()
	require.NoError(t, idx.EnsureModel(embeddings.ModelID(emb), emb.Dimensions()))

	fake := &fakeLLM{answer: "should never be called"}
	engine, err := New(idx, emb, fake)
	require.NoError(t, err)

	answer, err := engine.Ask(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, InsufficientAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.Nil(t, fake.messages, "the model must not be called for an empty index")
}

// TestAskLLMError tests error propagation from the model.
func TestAskLLMError(t *testing.T) {
	emb := embeddings.NewHashService(16)
	idx := newTestCorpus(t, emb)

	fake := &fakeLLM{err: errors.New("model offline")}
	engine, err := New(idx, emb, fake)
	require.NoError(t, err)

	_, err = engine.Ask(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model offline")
}

// TestAskWithoutLLM tests the search-only engine guard.
func TestAskWithoutLLM(t *testing.T) {
	emb := embeddings.NewHashService(16)
	idx := newTestCorpus(t, emb)

	engine, err := New(idx, emb, nil)
	require.NoError(t, err)

	_, err = engine.Ask(context.Background(), "anything")
	assert.Error(t, err)
}

// TestNewChecksModelBinding tests the embedder/index guard.
func TestNewChecksModelBinding(t *testing.T) {
	emb := embeddings.NewHashService(16)
	idx := newTestCorpus(t, emb)

	_, err := New(idx, embeddings.NewHashService(32), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash/xxh64-16")
}
