package config

import (
	"os"
	"path/filepath"
)

// Default configuration values
const (
	// Embedding defaults
	DefaultEmbeddingProvider = "ollama"
	DefaultOllamaURL         = "http://localhost:11434"
	DefaultOllamaEmbedModel  = "nomic-embed-text"
	DefaultOpenAIEmbedModel  = "text-embedding-3-small"

	// LLM defaults
	DefaultLLMProvider    = "ollama"
	DefaultOllamaLLMModel = "qwen2.5:7b"
	DefaultOpenAILLMModel = "gpt-4o-mini"

	// Segmentation defaults
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// Sweep defaults
	DefaultMaxFileSize = 10 << 20 // 10MB
)

// DefaultIgnorePatterns returns the default list of file patterns to ignore.
func DefaultIgnorePatterns() []string {
	return []string{
		// Version control
		".git/",
		".svn/",
		".hg/",

		// Dependencies and build outputs
		"node_modules/",
		"vendor/",
		"dist/",
		"build/",
		"target/",
		"__pycache__/",
		"*.pyc",

		// Lock files
		"*.lock",
		"package-lock.json",
		"yarn.lock",
		"go.sum",

		// Binary/compiled
		"*.exe",
		"*.dll",
		"*.so",
		"*.dylib",
		"*.o",
		"*.a",
		"*.class",

		// Media
		"*.jpg",
		"*.jpeg",
		"*.png",
		"*.gif",
		"*.ico",
		"*.mp3",
		"*.mp4",
		"*.wav",
		"*.mov",

		// Archives
		"*.zip",
		"*.tar",
		"*.tar.gz",
		"*.tgz",
		"*.rar",
		"*.7z",

		// Databases
		"*.db",
		"*.sqlite",
		"*.sqlite3",

		// Misc
		".DS_Store",
		"Thumbs.db",
		".env",
		".env.*",
	}
}

// DefaultConfigDir returns the default configuration directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/filebrain"
	}
	return filepath.Join(home, ".config", "filebrain")
}

// DefaultDataDir returns the default data directory path. Both the
// record store and the vector index live here.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".local/share/filebrain"
	}
	return filepath.Join(home, ".local", "share", "filebrain")
}
