package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"cchat/internal/core/conversation"
	"cchat/internal/core/project"
	"cchat/pkg/cclog"
)

var (
	listLimit int
	listSince string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions of the current project",
	Long: `List the sessions of the current project, most recent first.

Shows the session summary or first prompt, relative time, turn count,
and whether the conversation has meaningful branches.

Examples:
  cchat list
  cchat list --limit 10
  cchat list --since "last tuesday"
  cchat list -p myproject`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of sessions to display")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only sessions updated since (natural language ok)")
}

func runList(cmd *cobra.Command, args []string) error {
	r := project.NewResolver()
	dir, err := r.ResolveDir(projectOverride)
	if err != nil {
		return err
	}

	files, err := project.SessionFiles(dir)
	if err != nil {
		return err
	}

	var since time.Time
	if listSince != "" {
		since, err = parseSince(listSince)
		if err != nil {
			return err
		}
	}

	shown := 0
	for i, path := range files {
		if shown >= listLimit {
			break
		}

		f, err := cclog.Load(path)
		if err != nil {
			// A corrupt file must not hide the rest of the project.
			fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", path, err)
			continue
		}
		if !since.IsZero() && f.Mtime.Before(since) {
			continue
		}

		s, err := conversation.New(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", path, err)
			continue
		}

		shown++
		fmt.Printf("[%d] %s\n", i+1, f.SessionID)
		if title := sessionTitle(f); title != "" {
			fmt.Printf("    %s\n", truncate(title, 80))
		}
		line := fmt.Sprintf("    %s", relativeTime(f.Mtime))
		if p, err := s.ActivePath(); err == nil {
			turns := conversation.GroupTurns(p, conversation.TurnOptions{})
			line += fmt.Sprintf(" · %d turn(s)", len(turns))
			if branches := s.Branches(branchPolicy(), p.UUIDSet()); len(branches) > 0 {
				line += fmt.Sprintf(" · %d branch point(s)", len(branches))
			}
		}
		fmt.Println(dimStyle.Render(line))
		fmt.Println()
	}

	if shown == 0 {
		fmt.Println("No sessions found.")
	}
	return nil
}

// sessionTitle prefers the recorded summary, then the first genuine
// user prompt.
func sessionTitle(f *cclog.File) string {
	if f.Summary != "" {
		return f.Summary
	}
	for i := range f.Entries {
		e := &f.Entries[i]
		if cclog.GenuineUser(e) && e.Text != "" {
			return strings.Split(e.Text, "\n")[0]
		}
	}
	return ""
}

// parseSince accepts RFC3339, YYYY-MM-DD, or natural language like
// "last tuesday" and "3 days ago".
func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	res, err := w.Parse(s, time.Now())
	if err == nil && res != nil {
		return res.Time, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
