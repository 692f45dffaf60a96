package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/filebrain/filebrain/internal/watcher"
)

var watchDebounce time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a directory and keep the index current",
	Long: `Sweep a directory once, then watch it for changes.

Created and modified files are re-indexed after a short debounce;
deleted files are removed from the index. Runs until interrupted.

Examples:
  # Keep your notes indexed while you edit them
  filebrain watch ~/notes

  # Batch rapid events over a longer window
  filebrain watch ~/notes --debounce 2s`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "delay before processing rapid changes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := args[0]

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	pipe, err := newPipeline(e)
	if err != nil {
		return err
	}

	w, err := watcher.New(root, pipe, e.cfg, watcher.WithDebounceTime(watchDebounce))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := w.Start(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
