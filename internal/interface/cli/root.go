package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cchat/internal/core/config"
)

var (
	projectOverride string
	versionInfo     string

	cfg *config.Config
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cchat",
	Short: "Read Claude Code conversations from session logs",
	Long: `cchat - view, search, and export your Claude Code conversations

Reads the JSONL session logs Claude Code writes under ~/.claude/projects,
resolves the active conversation path through retries and compactions,
and renders it as readable turns.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand behaves like `view` for the latest session
		return viewCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectOverride, "project", "p", "", "Project to read (name, key, or path; default: current directory)")
}
