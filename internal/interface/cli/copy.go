package cli

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"cchat/internal/core/conversation"
)

var (
	copyTurns int
	copyRange string
	copyAll   bool
)

var copyCmd = &cobra.Command{
	Use:     "copy [session]",
	Aliases: []string{"cp"},
	Short:   "Copy turns to the clipboard",
	Long: `Copy the selected turns of a conversation to the clipboard as plain
text. Selection works like view: -n for trailing turns, -r for ranges.

A session that contains only compact summaries (everything else was
compacted away) copies the summary text instead of nothing.

Examples:
  cchat copy
  cchat copy -n 3
  cchat copy 2 -r 1:5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCopy,
}

func init() {
	rootCmd.AddCommand(copyCmd)
	copyCmd.Flags().IntVarP(&copyTurns, "turns", "n", 0, "Copy the last N turns")
	copyCmd.Flags().StringVarP(&copyRange, "range", "r", "", "Turn range, e.g. 3:7 or -5:")
	copyCmd.Flags().BoolVar(&copyAll, "all", false, "Copy every turn")
}

func runCopy(cmd *cobra.Command, args []string) error {
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}

	s, err := loadConversation(ref)
	if err != nil {
		return err
	}

	path, err := s.ActivePath()
	if err != nil {
		return err
	}
	turns := conversation.GroupTurns(path, conversation.TurnOptions{})

	start, end, err := copySelection(len(turns))
	if err != nil {
		return err
	}
	selected := turns[start:end]

	var parts []string
	for _, turn := range selected {
		if turn.IsCompactSummary {
			continue
		}
		if turn.UserText != "" {
			parts = append(parts, "User: "+turn.UserText)
		}
		if turn.AssistantText != "" {
			parts = append(parts, "Assistant: "+turn.AssistantText)
		}
	}

	// Compacted-away sessions still have their summaries to offer.
	if len(parts) == 0 {
		for _, turn := range selected {
			if turn.IsCompactSummary && turn.UserText != "" {
				parts = append(parts, turn.UserText)
			}
		}
	}
	if len(parts) == 0 {
		return fmt.Errorf("nothing to copy")
	}

	text := strings.Join(parts, "\n\n")
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	fmt.Printf("Copied %d turn(s) to clipboard.\n", len(selected))
	return nil
}

func copySelection(total int) (int, int, error) {
	if copyAll {
		return 0, total, nil
	}
	if copyRange != "" {
		r, err := parseRange(copyRange)
		if err != nil {
			return 0, 0, err
		}
		start, end := r.indices(total)
		return start, end, nil
	}
	n := copyTurns
	if n <= 0 {
		n = settings().DefaultTurns
	}
	start, end := lastN(n, total)
	return start, end, nil
}
