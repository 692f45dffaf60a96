package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/filebrain/filebrain/internal/llm"
	"github.com/filebrain/filebrain/internal/query"
	"github.com/filebrain/filebrain/internal/ui"
)

var (
	querySearchOnly bool
	queryLimit      int
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <question...>",
	Short: "Ask a question over the indexed files",
	Long: `Answer a natural-language question from the indexed corpus.

The question is embedded, the most similar passages are retrieved, and
the LLM answers from those excerpts only, citing source paths in
square brackets. With --search-only the ranked passages are printed
without calling the LLM.

Examples:
  # Ask a question with cited answers
  filebrain query "what did the landlord say about the deposit"

  # Semantic search without the LLM
  filebrain query --search-only "deposit terms"

  # Retrieve more passages
  filebrain query -k 10 --search-only "meeting notes from March"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&querySearchOnly, "search-only", false, "print ranked passages without asking the LLM")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "k", query.DefaultContextLimit, "number of passages to retrieve")
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	var chat llm.Service
	if !querySearchOnly {
		chat, err = llm.NewService(e.cfg)
		if err != nil {
			return err
		}
	}

	engine, err := query.New(e.index, e.embedder, chat, query.WithContextLimit(queryLimit))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if querySearchOnly {
		results, err := engine.Search(ctx, question, queryLimit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results. Run 'filebrain scan <dir>' to index files first.")
			return nil
		}

		fmt.Println(ui.Header.Render(fmt.Sprintf("Results for: %s", question)))
		fmt.Println()
		for i, r := range results {
			fmt.Printf("%s %s %s\n",
				ui.ResultHeader.Render(fmt.Sprintf("%d.", i+1)),
				ui.FormatFilePath(r.SourcePath, r.ChunkIndex),
				ui.FormatScore(float64(r.Score)),
			)
			fmt.Println(ui.ResultContent.Render(snippet(r.ChunkText, 240)))
			fmt.Println()
		}
		return nil
	}

	log.Debug("Asking", "question", question, "limit", queryLimit)

	answer, err := engine.Ask(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println(ui.Header.Render("Answer"))
	fmt.Println()

	rendered, err := renderMarkdown(answer.Text)
	if err != nil {
		fmt.Println(answer.Text)
	} else {
		fmt.Print(rendered)
	}

	if len(answer.Sources) > 0 {
		fmt.Println(ui.Dim.Render("Sources:"))
		for i, path := range answer.Sources {
			fmt.Printf("  [%d] %s\n", i+1, ui.FilePath.Render(path))
		}
	}
	if len(answer.Uncited) > 0 {
		fmt.Println()
		fmt.Println(ui.Warning.Render("The answer cites paths that were not among the retrieved excerpts:"))
		for _, path := range answer.Uncited {
			fmt.Printf("  %s\n", path)
		}
	}

	return nil
}

// renderMarkdown renders markdown content using glamour.
func renderMarkdown(content string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(content)
}

// snippet truncates text to n runes on a single line.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "…"
}
