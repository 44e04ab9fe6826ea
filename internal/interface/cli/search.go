package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cchat/internal/core/index"
	"cchat/internal/core/project"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:     "search <pattern>",
	Aliases: []string{"s"},
	Short:   "Search message text across project sessions",
	Long: `Search the text of all sessions in the current project.

Uses the SQLite full-text index, syncing it first so results reflect
the files on disk. Patterns with symbols fall back to substring match.

Examples:
  cchat search "connection timeout"
  cchat search handleRequest --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	r := project.NewResolver()
	dir, err := r.ResolveDir(projectOverride)
	if err != nil {
		return err
	}

	db, err := index.Open(index.DefaultPath())
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.SyncProject(dir); err != nil {
		return fmt.Errorf("failed to sync index: %w", err)
	}

	results, err := db.Search(args[0], filepath.Base(dir), searchLimit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for _, res := range results {
		title := res.SessionSummary
		if title == "" {
			title = res.SessionID
		}
		fmt.Println(userStyle.Render(title))
		snippet := strings.Join(strings.Fields(res.MessageText), " ")
		fmt.Printf("  %s\n", truncate(snippet, 120))
		fmt.Println(dimStyle.Render(fmt.Sprintf("  %s · %s", res.SessionID, res.Timestamp)))
		fmt.Println()
	}
	return nil
}
