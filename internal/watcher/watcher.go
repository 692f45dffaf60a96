package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/filebrain/filebrain/internal/config"
	"github.com/filebrain/filebrain/internal/pipeline"
)

// Watcher keeps the index current while a directory tree changes.
type Watcher struct {
	root    string
	pipe    *pipeline.Pipeline
	cfg     *config.Config
	ignorer Ignorer

	// debounce holds pending file events to batch process
	debounce     map[string]fsnotify.Op
	debounceMu   sync.Mutex
	debounceTime time.Duration

	// callback for status updates
	onEvent func(event string, path string)
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounceTime sets the debounce duration for batching events.
func WithDebounceTime(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceTime = d
	}
}

// WithEventCallback sets a callback for file events.
func WithEventCallback(fn func(event string, path string)) Option {
	return func(w *Watcher) {
		w.onEvent = fn
	}
}

// New creates a watcher over the tree rooted at root.
func New(root string, pipe *pipeline.Pipeline, cfg *config.Config, opts ...Option) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:         absRoot,
		pipe:         pipe,
		cfg:          cfg,
		ignorer:      newIgnorer(absRoot, cfg.Ignore),
		debounce:     make(map[string]fsnotify.Op),
		debounceTime: 500 * time.Millisecond,
		onEvent:      func(string, string) {}, // noop default
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start sweeps the tree once, then watches for changes until the
// context is cancelled. An in-flight file always runs to completion.
func (w *Watcher) Start(ctx context.Context) error {
	stats, err := Sweep(ctx, w.root, w.pipe, w.cfg)
	if err != nil {
		return err
	}
	log.Info("Initial sweep complete",
		"processed", stats.Processed,
		"failed", stats.Failed,
		"skipped", stats.Skipped)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addDirectories(watcher); err != nil {
		return err
	}

	log.Info("Watching for file changes", "root", w.root)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, watcher)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("Watcher error", "error", err)
		}
	}
}

// addDirectories recursively adds all directories to the watcher.
func (w *Watcher) addDirectories(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if !d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			relPath = path
		}
		if skipDir(d.Name(), relPath, w.ignorer) {
			return filepath.SkipDir
		}

		if err := watcher.Add(path); err != nil {
			log.Debug("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// handleEvent queues a single file system event for the debouncer.
func (w *Watcher) handleEvent(event fsnotify.Event, watcher *fsnotify.Watcher) {
	path := event.Name

	relPath, err := filepath.Rel(w.root, path)
	if err != nil {
		relPath = path
	}

	// New directories need a watch of their own.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !skipDir(filepath.Base(path), relPath, w.ignorer) {
				watcher.Add(path)
				log.Debug("Added directory to watch", "path", relPath)
			}
			return
		}
	}

	// A removed path can no longer be stat'd, so deletions pass
	// through on the name alone.
	if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return
		}
		if w.cfg.Indexing.MaxFileSize > 0 && info.Size() > int64(w.cfg.Indexing.MaxFileSize) {
			return
		}
	}

	if skipFile(filepath.Base(path), relPath, w.ignorer) {
		return
	}

	w.debounceMu.Lock()
	w.debounce[path] = event.Op
	w.debounceMu.Unlock()
}

// processDebounced processes debounced file events periodically.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(w.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flushDebounced(ctx)
		}
	}
}

// flushDebounced processes all pending debounced events.
func (w *Watcher) flushDebounced(ctx context.Context) {
	w.debounceMu.Lock()
	if len(w.debounce) == 0 {
		w.debounceMu.Unlock()
		return
	}

	events := make(map[string]fsnotify.Op, len(w.debounce))
	for k, v := range w.debounce {
		events[k] = v
	}
	w.debounce = make(map[string]fsnotify.Op)
	w.debounceMu.Unlock()

	for path, op := range events {
		select {
		case <-ctx.Done():
			return
		default:
		}

		relPath, _ := filepath.Rel(w.root, path)

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			if err := w.pipe.RemoveFile(path); err != nil {
				log.Error("Failed to handle delete", "path", relPath, "error", err)
			} else {
				w.onEvent("delete", relPath)
				log.Info("Removed from index", "file", relPath)
			}
		} else if op.Has(fsnotify.Create) || op.Has(fsnotify.Write) {
			switch w.pipe.ProcessFile(ctx, path) {
			case pipeline.OutcomeProcessed:
				w.onEvent("index", relPath)
				log.Info("Indexed", "file", relPath)
			case pipeline.OutcomeFailed:
				w.onEvent("fail", relPath)
			}
		}
	}
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}
