package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"cchat/internal/core/project"
	"cchat/internal/interface/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive session picker",
	Long:  `Browse the current project's sessions interactively and view one.`,
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	r := project.NewResolver()
	dir, err := r.ResolveDir(projectOverride)
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.New(dir), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
