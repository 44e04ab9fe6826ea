package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cchat/internal/core/conversation"
)

var (
	viewTurns      int
	viewRange      string
	viewAll        bool
	viewTools      bool
	viewTimestamps bool
	viewRaw        bool
	viewJSON       bool
	viewBranch     int
	includeCompact bool
)

var viewCmd = &cobra.Command{
	Use:     "view [session]",
	Aliases: []string{"v"},
	Short:   "View a conversation as turns",
	Long: `View the active conversation path of a session, grouped into turns.

The session argument is a listing index, a session ID prefix, or empty
for the most recent session of the current project.

Examples:
  cchat view
  cchat view 2 -n 10
  cchat view -r 3:7
  cchat view -r -5: --tools
  cchat view --branch 1
  cchat view --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().IntVarP(&viewTurns, "turns", "n", 0, "Show the last N turns")
	viewCmd.Flags().StringVarP(&viewRange, "range", "r", "", "Turn range, e.g. 3:7 or -5: (negative counts from the end)")
	viewCmd.Flags().BoolVar(&viewAll, "all", false, "Show every turn")
	viewCmd.Flags().BoolVar(&viewTools, "tools", false, "Show tool calls and results")
	viewCmd.Flags().BoolVar(&viewTimestamps, "timestamps", false, "Show turn timestamps")
	viewCmd.Flags().BoolVar(&viewRaw, "raw", false, "Print raw entries instead of turns")
	viewCmd.Flags().BoolVar(&viewJSON, "json", false, "Emit turns as JSON")
	viewCmd.Flags().IntVar(&viewBranch, "branch", 0, "Follow the Nth alternative at the deepest fork")
	viewCmd.Flags().BoolVar(&includeCompact, "include-compact", false, "Show compaction seams and the compact summary text")
}

func runView(cmd *cobra.Command, args []string) error {
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}

	s, err := loadConversation(ref)
	if err != nil {
		return err
	}
	printWarnings(s)

	turns, path, err := selectTurns(s)
	if err != nil {
		return err
	}

	if viewRaw {
		return printRawEntries(path)
	}
	if viewJSON {
		return printTurnsJSON(turns)
	}

	start, end, err := selection(len(turns))
	if err != nil {
		return err
	}
	if start == end {
		fmt.Println("No turns selected.")
		return nil
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("... %d earlier turn(s) hidden\n\n", start)))
	}
	for _, turn := range turns[start:end] {
		renderTurn(&b, turn, viewTools, viewTimestamps, includeCompact)
	}
	fmt.Print(b.String())
	return nil
}

// selectTurns resolves the requested path and groups it. The branch flag
// follows an alternative at the deepest fork instead of the active tip.
func selectTurns(s *conversation.Session) ([]conversation.Turn, *conversation.Path, error) {
	opts := conversation.PathOptions{Branch: viewBranch}
	path, err := s.Path(opts)
	if err != nil {
		return nil, nil, err
	}

	// Seams stay visible by default; config can hide them, and
	// --include-compact forces them back on.
	suppress := settings().SuppressBoundaries && !includeCompact
	turns := conversation.GroupTurns(path, conversation.TurnOptions{
		SuppressBoundaries: suppress,
		CollectTools:       viewTools || viewJSON,
	})
	return turns, path, nil
}

// selection applies --all / -r / -n, defaulting to the configured
// trailing turn count.
func selection(total int) (int, int, error) {
	if viewAll {
		return 0, total, nil
	}
	if viewRange != "" {
		r, err := parseRange(viewRange)
		if err != nil {
			return 0, 0, err
		}
		start, end := r.indices(total)
		return start, end, nil
	}
	n := viewTurns
	if n <= 0 {
		n = settings().DefaultTurns
	}
	start, end := lastN(n, total)
	return start, end, nil
}

func printRawEntries(path *conversation.Path) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	type rawEntry struct {
		UUID       string `json:"uuid"`
		ParentUUID string `json:"parentUuid,omitempty"`
		Kind       string `json:"kind"`
		Timestamp  string `json:"timestamp,omitempty"`
		Text       string `json:"text,omitempty"`
		FileIndex  int    `json:"fileIndex"`
		Boundary   bool   `json:"boundary,omitempty"`
	}
	out := make([]rawEntry, 0, len(path.Entries))
	for _, pe := range path.Entries {
		ts := ""
		if !pe.Timestamp.IsZero() {
			ts = pe.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, rawEntry{
			UUID:       pe.UUID,
			ParentUUID: pe.ParentUUID,
			Kind:       string(pe.Kind),
			Timestamp:  ts,
			Text:       pe.Text,
			FileIndex:  pe.FileIndex,
			Boundary:   pe.Boundary,
		})
	}
	return enc.Encode(out)
}

func printTurnsJSON(turns []conversation.Turn) error {
	type toolJSON struct {
		Name    string `json:"name"`
		Result  string `json:"result,omitempty"`
		IsError bool   `json:"isError,omitempty"`
	}
	type turnJSON struct {
		Index            int        `json:"index"`
		UUID             string     `json:"uuid"`
		Timestamp        string     `json:"timestamp,omitempty"`
		User             string     `json:"user,omitempty"`
		Assistant        string     `json:"assistant,omitempty"`
		Tools            []toolJSON `json:"tools,omitempty"`
		IsCompactSummary bool       `json:"isCompactSummary,omitempty"`
		BoundaryCrossed  bool       `json:"boundaryCrossed,omitempty"`
	}

	out := make([]turnJSON, 0, len(turns))
	for _, t := range turns {
		tj := turnJSON{
			Index:            t.Index,
			UUID:             t.UUID,
			User:             t.UserText,
			Assistant:        t.AssistantText,
			IsCompactSummary: t.IsCompactSummary,
			BoundaryCrossed:  t.BoundaryCrossed,
		}
		if !t.Timestamp.IsZero() {
			tj.Timestamp = t.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		for _, call := range t.ToolCalls {
			tj.Tools = append(tj.Tools, toolJSON{Name: call.Name, Result: call.Result, IsError: call.IsError})
		}
		out = append(out, tj)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
