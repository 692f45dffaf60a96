// Package query answers questions over the indexed corpus: semantic
// search over passages, and LLM answers constrained to cite them.
package query

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/filebrain/filebrain/internal/embeddings"
	"github.com/filebrain/filebrain/internal/llm"
	"github.com/filebrain/filebrain/internal/vecstore"
)

// DefaultContextLimit is how many passages an answer draws on.
const DefaultContextLimit = 5

// InsufficientAnswer is what the model is told to say, and what an
// empty index answers directly.
const InsufficientAnswer = "I don't have enough information in the indexed files to answer this."

const ragSystemPrompt = `You are a file search assistant. Answer questions based ONLY on the provided file excerpts below. Follow these rules strictly:

1. For every claim you make, cite the source file path in square brackets like [/path/to/file.ext].
2. If the excerpts don't contain enough information to answer the question, say "I don't have enough information in the indexed files to answer this."
3. Never invent or guess file paths. Only cite paths that appear in the excerpts.
4. Keep your answer concise and relevant to the question.`

// Answer is the result of an LLM-powered query.
type Answer struct {
	Text string

	// Sources are the cited paths, in first-citation order.
	Sources []string

	// Uncited holds citations that name paths outside the retrieved
	// excerpts. The model was told not to invent paths; when it does
	// anyway, the caller gets to see it.
	Uncited []string

	// Retrieved are the passages the answer drew on.
	Retrieved []vecstore.SearchResult
}

// Engine retrieves passages and asks a chat model for cited answers.
type Engine struct {
	index        *vecstore.Index
	embedder     embeddings.Service
	llm          llm.Service
	contextLimit int
}

// Option configures the engine.
type Option func(*Engine)

// WithContextLimit sets how many passages an answer draws on.
func WithContextLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.contextLimit = n
		}
	}
}

// New creates a query engine. The llm service may be nil for a
// search-only engine; Answer then returns an error.
func New(idx *vecstore.Index, emb embeddings.Service, chat llm.Service, opts ...Option) (*Engine, error) {
	if got, want := idx.ModelID(), embeddings.ModelID(emb); got != "" && got != want {
		return nil, fmt.Errorf("index was built with embedding model %s, current model is %s", got, want)
	}
	e := &Engine{
		index:        idx,
		embedder:     emb,
		llm:          chat,
		contextLimit: DefaultContextLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search embeds the query and returns the k most similar passages.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]vecstore.SearchResult, error) {
	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return e.index.Search(vec, k)
}

// Ask answers a question from retrieved excerpts with path citations.
// An empty index yields the insufficient-information answer without
// calling the model.
func (e *Engine) Ask(ctx context.Context, question string) (*Answer, error) {
	if e.llm == nil {
		return nil, fmt.Errorf("no LLM service configured")
	}

	results, err := e.Search(ctx, question, e.contextLimit)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Answer{Text: InsufficientAnswer}, nil
	}

	messages := []llm.Message{
		{Role: "system", Content: ragSystemPrompt},
		{Role: "user", Content: buildUserMessage(question, results)},
	}

	text, err := e.llm.Complete(ctx, messages, llm.DefaultCompletionOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	sources, uncited := verifyCitations(text, results)
	for _, path := range uncited {
		log.Warn("Answer cites a path that was not retrieved", "path", path)
	}

	return &Answer{
		Text:      text,
		Sources:   sources,
		Uncited:   uncited,
		Retrieved: results,
	}, nil
}

// buildUserMessage labels each excerpt with its source path in square
// brackets, matching the citation format the system prompt demands.
func buildUserMessage(question string, results []vecstore.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("FILE EXCERPTS:\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "[%s]:\n%s\n\n", r.SourcePath, r.ChunkText)
	}
	fmt.Fprintf(&sb, "QUESTION: %s", question)
	return sb.String()
}

var citationPattern = regexp.MustCompile(`\[([^\[\]\n]+)\]`)

// verifyCitations splits the bracketed citations in an answer into
// paths that were actually retrieved (deduplicated, first-citation
// order) and paths that were not.
func verifyCitations(text string, results []vecstore.SearchResult) (sources, uncited []string) {
	retrieved := make(map[string]bool, len(results))
	for _, r := range results {
		retrieved[r.SourcePath] = true
	}

	seen := make(map[string]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		path := m[1]
		if seen[path] {
			continue
		}
		seen[path] = true
		if retrieved[path] {
			sources = append(sources, path)
		} else if looksLikePath(path) {
			uncited = append(uncited, path)
		}
	}
	return sources, uncited
}

// looksLikePath filters bracketed text that is clearly not a citation,
// like markdown link labels or [1] style references.
func looksLikePath(s string) bool {
	return strings.ContainsAny(s, "/\\.")
}
