package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDefaultConfig tests the built-in defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, DefaultOllamaEmbedModel, cfg.Embeddings.Ollama.Model)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, DefaultOllamaLLMModel, cfg.LLM.Ollama.Model)
	assert.Equal(t, DefaultChunkSize, cfg.Indexing.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, cfg.Indexing.ChunkOverlap)
	assert.NotEmpty(t, cfg.Storage.DataDir)
	assert.NotEmpty(t, cfg.Ignore)
}

// TestStoragePathsArePaired tests that both databases follow data_dir.
func TestStoragePathsArePaired(t *testing.T) {
	s := StorageConfig{DataDir: "/var/lib/filebrain"}

	assert.Equal(t, filepath.Join("/var/lib/filebrain", "records.db"), s.RecordsPath())
	assert.Equal(t, filepath.Join("/var/lib/filebrain", "vectors.db"), s.VectorsPath())
}

// TestSetDataDir tests the paired override.
func TestSetDataDir(t *testing.T) {
	orig := Get().Storage.DataDir
	defer SetDataDir(orig)

	SetDataDir("/tmp/fb-test")
	got := Get().Storage
	assert.Equal(t, "/tmp/fb-test", got.DataDir)
	assert.Equal(t, "/tmp/fb-test/records.db", got.RecordsPath())
	assert.Equal(t, "/tmp/fb-test/vectors.db", got.VectorsPath())
}

// TestDefaultIgnorePatterns tests a few representative patterns.
func TestDefaultIgnorePatterns(t *testing.T) {
	patterns := DefaultIgnorePatterns()
	assert.Contains(t, patterns, ".git/")
	assert.Contains(t, patterns, "node_modules/")
	assert.Contains(t, patterns, "*.db")
	assert.NotContains(t, patterns, "*.txt")
}
