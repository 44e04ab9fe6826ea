package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"cchat/internal/core/config"
	"cchat/internal/core/conversation"
	"cchat/internal/core/project"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	seamStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// loadConversation resolves a session reference inside the selected
// project and loads it together with its compaction predecessors.
func loadConversation(ref string) (*conversation.Session, error) {
	r := project.NewResolver()
	dir, err := r.ResolveDir(projectOverride)
	if err != nil {
		return nil, err
	}
	path, err := project.ResolveSessionFile(dir, ref)
	if err != nil {
		return nil, err
	}
	files, err := project.LoadFamily(dir, path)
	if err != nil {
		return nil, err
	}
	return conversation.New(files...)
}

func settings() *config.Config {
	if cfg == nil {
		return &config.Config{DefaultTurns: 5}
	}
	return cfg
}

func branchPolicy() conversation.BranchPolicy {
	if kinds := settings().MechanicalKinds; len(kinds) > 0 {
		return conversation.PolicyFromKinds(kinds)
	}
	return conversation.DefaultBranchPolicy()
}

// renderTurn prints one turn. The seam annotation goes above the turn
// that follows a compaction. Compact-summary turns render as a bare
// marker unless showCompact also asks for the summary text.
func renderTurn(b *strings.Builder, turn conversation.Turn, showTools, showTimestamps, showCompact bool) {
	if turn.BoundaryCrossed {
		seam := "── context compacted ──"
		if turn.Positional {
			seam = "── context compacted (stitch uncertain) ──"
		}
		b.WriteString(seamStyle.Render(seam))
		b.WriteString("\n")
	}

	header := fmt.Sprintf("[%d]", turn.Index)
	if showTimestamps && !turn.Timestamp.IsZero() {
		header += dimStyle.Render(" " + turn.Timestamp.Format("2006-01-02 15:04:05"))
	}

	if turn.IsCompactSummary {
		b.WriteString(seamStyle.Render(header + " compact summary"))
		b.WriteString("\n")
		if showCompact && turn.UserText != "" {
			b.WriteString(turn.UserText)
			b.WriteString("\n")
		}
	} else if turn.UserText != "" {
		b.WriteString(userStyle.Render(header+" user") + "\n")
		b.WriteString(turn.UserText)
		b.WriteString("\n")
	} else {
		b.WriteString(dimStyle.Render(header+" (session start)") + "\n")
	}

	if showTools {
		for _, call := range turn.ToolCalls {
			line := fmt.Sprintf("  ⚒ %s", call.Name)
			if call.IsError {
				line += errStyle.Render(" (error)")
			}
			b.WriteString(dimStyle.Render(line))
			b.WriteString("\n")
			if call.Result != "" {
				b.WriteString(dimStyle.Render(indent(truncate(call.Result, 400), "    ")))
				b.WriteString("\n")
			}
		}
	}

	if turn.AssistantText != "" {
		b.WriteString(assistantStyle.Render("assistant") + "\n")
		b.WriteString(turn.AssistantText)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func printWarnings(s *conversation.Session) {
	for _, w := range s.Warnings() {
		fmt.Fprintln(os.Stderr, dimStyle.Render("warning: "+w))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.Time(t)
}
