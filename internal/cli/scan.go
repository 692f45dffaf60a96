package cli

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/filebrain/filebrain/internal/ui"
	"github.com/filebrain/filebrain/internal/watcher"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <directory>",
	Short: "Index or re-index a directory tree",
	Long: `Walk a directory tree and index every readable file.

Files are fingerprinted by content; unchanged files are skipped
entirely, so re-running scan is cheap. Files that cannot be extracted
or embedded are recorded as failed and do not stop the scan.

Examples:
  # Index your notes
  filebrain scan ~/notes

  # Re-run after edits; only changed files are reprocessed
  filebrain scan ~/notes`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := signalContext()
	defer cancel()

	log.Info("Scanning", "root", root)

	stats, err := watcher.Sweep(ctx, root, pipe, e.cfg)
	if err != nil && ctx.Err() == nil {
		return err
	}

	fmt.Println()
	fmt.Println(ui.Header.Render("Scan complete"))
	fmt.Printf("  %s %d\n", ui.Dim.Render("Processed:"), stats.Processed)
	fmt.Printf("  %s %d\n", ui.Dim.Render("Skipped:"), stats.Skipped)
	if stats.Failed > 0 {
		fmt.Printf("  %s %s\n", ui.Dim.Render("Failed:"), ui.Warning.Render(fmt.Sprintf("%d", stats.Failed)))
		fmt.Println()
		fmt.Println(ui.Dim.Render("Run 'filebrain status' to see failed files."))
	} else {
		fmt.Printf("  %s %d\n", ui.Dim.Render("Failed:"), stats.Failed)
	}

	return nil
}
