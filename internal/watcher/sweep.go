// Package watcher feeds the pipeline from the filesystem: one-shot
// recursive sweeps and a live fsnotify mode.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/filebrain/filebrain/internal/config"
	"github.com/filebrain/filebrain/internal/pipeline"
)

// SweepStats summarizes one sweep over a directory tree.
type SweepStats struct {
	Processed int
	Failed    int
	Skipped   int
}

// Ignorer decides whether a relative path is excluded from indexing.
type Ignorer interface {
	MatchesPath(path string) bool
}

// combinedIgnorer wraps the tree's .gitignore and the configured patterns.
type combinedIgnorer struct {
	file     *gitignore.GitIgnore
	patterns *gitignore.GitIgnore
}

func (c *combinedIgnorer) MatchesPath(path string) bool {
	return c.file.MatchesPath(path) || c.patterns.MatchesPath(path)
}

// newIgnorer builds the ignorer for a tree: configured patterns plus
// the defaults, plus the root's .gitignore when present.
func newIgnorer(root string, extra []string) Ignorer {
	var patterns []string
	patterns = append(patterns, extra...)
	patterns = append(patterns, config.DefaultIgnorePatterns()...)
	compiled := gitignore.CompileIgnoreLines(patterns...)

	gitignorePath := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		gi, err := gitignore.CompileIgnoreFile(gitignorePath)
		if err != nil {
			log.Warn("Failed to parse .gitignore", "path", gitignorePath, "error", err)
		} else {
			return &combinedIgnorer{file: gi, patterns: compiled}
		}
	}

	return compiled
}

// Sweep walks the tree rooted at root and runs every indexable file
// through the pipeline, one at a time. Unreadable entries are skipped,
// not fatal; cancellation stops the walk after the in-flight file.
func Sweep(ctx context.Context, root string, pipe *pipeline.Pipeline, cfg *config.Config) (SweepStats, error) {
	var stats SweepStats

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return stats, fmt.Errorf("failed to resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return stats, fmt.Errorf("root path does not exist: %w", err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	ignorer := newIgnorer(absRoot, cfg.Ignore)

	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Debug("Error accessing path", "path", path, "error", err)
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			relPath = path
		}

		if d.IsDir() {
			if skipDir(d.Name(), relPath, ignorer) {
				return filepath.SkipDir
			}
			return nil
		}

		if skipFile(d.Name(), relPath, ignorer) {
			stats.Skipped++
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			log.Debug("Failed to get file info", "path", path, "error", err)
			stats.Skipped++
			return nil
		}
		if cfg.Indexing.MaxFileSize > 0 && fi.Size() > int64(cfg.Indexing.MaxFileSize) {
			log.Debug("File exceeds size limit", "path", relPath, "size", fi.Size())
			stats.Skipped++
			return nil
		}

		switch pipe.ProcessFile(ctx, path) {
		case pipeline.OutcomeProcessed:
			stats.Processed++
		case pipeline.OutcomeFailed:
			stats.Failed++
		default:
			stats.Skipped++
		}
		return nil
	})

	return stats, err
}

func skipDir(name, relPath string, ignorer Ignorer) bool {
	if name == ".git" {
		return true
	}
	if relPath != "." && strings.HasPrefix(name, ".") {
		return true
	}
	return ignorer.MatchesPath(relPath + "/")
}

func skipFile(name, relPath string, ignorer Ignorer) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return ignorer.MatchesPath(relPath)
}
