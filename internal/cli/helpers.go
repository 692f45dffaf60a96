package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/filebrain/filebrain/internal/chunker"
	"github.com/filebrain/filebrain/internal/config"
	"github.com/filebrain/filebrain/internal/embeddings"
	"github.com/filebrain/filebrain/internal/extract"
	"github.com/filebrain/filebrain/internal/pipeline"
	"github.com/filebrain/filebrain/internal/store"
	"github.com/filebrain/filebrain/internal/vecstore"
)

// env bundles the open stores and services a command works with.
type env struct {
	cfg      *config.Config
	store    store.Store
	index    *vecstore.Index
	embedder embeddings.Service
}

func (e *env) Close() {
	if e.index != nil {
		e.index.Close()
	}
	if e.store != nil {
		e.store.Close()
	}
}

// openEnv opens both databases and the configured embedding service.
func openEnv() (*env, error) {
	cfg := config.Get()

	st, err := store.NewSQLiteStore(cfg.Storage.RecordsPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	idx, err := vecstore.Open(cfg.Storage.VectorsPath())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	emb, err := embeddings.NewService(cfg)
	if err != nil {
		idx.Close()
		st.Close()
		return nil, err
	}

	return &env{cfg: cfg, store: st, index: idx, embedder: emb}, nil
}

// newPipeline wires the ingestion pipeline over an open environment.
func newPipeline(e *env) (*pipeline.Pipeline, error) {
	return pipeline.New(e.store, e.index, e.embedder, extract.NewRegistry(), chunker.Options{
		ChunkSize:    e.cfg.Indexing.ChunkSize,
		ChunkOverlap: e.cfg.Indexing.ChunkOverlap,
	})
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted")
		cancel()
	}()

	return ctx, cancel
}
