package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cchat/internal/core/index"
	"cchat/internal/core/project"
)

var syncAll bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the search index",
	Long: `Refresh the SQLite search index from the session files on disk.

Unchanged files are skipped by content hash; changed files are
reindexed in place.

Examples:
  cchat sync
  cchat sync --all`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Sync every known project, not just the current one")
}

func runSync(cmd *cobra.Command, args []string) error {
	db, err := index.Open(index.DefaultPath())
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer func() { _ = db.Close() }()

	r := project.NewResolver()

	var dirs []string
	if syncAll {
		projects, err := r.ListProjects()
		if err != nil {
			return err
		}
		for _, p := range projects {
			dirs = append(dirs, p.Path)
		}
	} else {
		dir, err := r.ResolveDir(projectOverride)
		if err != nil {
			return err
		}
		dirs = []string{dir}
	}

	var total index.SyncStats
	for _, dir := range dirs {
		stats, err := db.SyncProject(dir)
		if err != nil {
			return fmt.Errorf("failed to sync %s: %w", dir, err)
		}
		total.Scanned += stats.Scanned
		total.Imported += stats.Imported
		total.Updated += stats.Updated
		total.Skipped += stats.Skipped
	}

	fmt.Printf("Synced %d file(s): %d new, %d updated, %d unchanged.\n",
		total.Scanned, total.Imported, total.Updated, total.Skipped)
	return nil
}
