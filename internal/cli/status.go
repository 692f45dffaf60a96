package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filebrain/filebrain/internal/extract"
	"github.com/filebrain/filebrain/internal/store"
	"github.com/filebrain/filebrain/internal/ui"
)

var statusShowFailed bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status and statistics",
	Long: `Display information about the index:
- Files per status (pending, processed, failed)
- Number of indexed passages and distinct sources
- Embedding model the index is bound to
- Data directory in use

Examples:
  # Show index status
  filebrain status

  # Also list failed files with their errors
  filebrain status --failed`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusShowFailed, "failed", false, "list failed files with error messages")
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	counts, err := e.store.CountByStatus()
	if err != nil {
		return fmt.Errorf("failed to count files: %w", err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	fmt.Println(ui.Header.Render("Index Status"))
	fmt.Println()

	if total == 0 {
		fmt.Println("No indexed files found.")
		fmt.Println()
		fmt.Println("Run 'filebrain scan <dir>' to create an index.")
		return nil
	}

	fmt.Printf("  %s %d\n", ui.Dim.Render("Files:"), total)
	fmt.Printf("    %s %d\n", ui.Success.Render("processed:"), counts[store.StatusProcessed])
	fmt.Printf("    %s %d\n", ui.Dim.Render("pending:"), counts[store.StatusPending])
	if counts[store.StatusFailed] > 0 {
		fmt.Printf("    %s %d\n", ui.Warning.Render("failed:"), counts[store.StatusFailed])
	} else {
		fmt.Printf("    %s %d\n", ui.Dim.Render("failed:"), 0)
	}

	fmt.Printf("  %s %d passages from %d sources\n",
		ui.Dim.Render("Indexed:"), e.index.Count(), e.index.Sources())

	if modelID := e.index.ModelID(); modelID != "" {
		fmt.Printf("  %s %s\n", ui.Dim.Render("Model:"), modelID)
	}
	fmt.Printf("  %s %d extractable\n", ui.Dim.Render("File types:"), len(extract.NewRegistry().Types()))
	fmt.Printf("  %s %s\n", ui.Dim.Render("Data dir:"), e.cfg.Storage.DataDir)

	if statusShowFailed && counts[store.StatusFailed] > 0 {
		failed, err := e.store.ListByStatus(store.StatusFailed)
		if err != nil {
			return fmt.Errorf("failed to list failed files: %w", err)
		}

		fmt.Println()
		fmt.Println(ui.SectionTitle.Render("Failed files"))
		for _, rec := range failed {
			fmt.Printf("  %s\n", ui.FilePath.Render(rec.Path))
			fmt.Printf("    %s\n", ui.Warning.Render(rec.Error))
		}
	}

	return nil
}
