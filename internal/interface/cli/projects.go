package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cchat/internal/core/project"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List all known projects",
	Long: `List every project directory under ~/.claude/projects that contains
at least one session, most recently active first.`,
	RunE: runProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(cmd *cobra.Command, args []string) error {
	r := project.NewResolver()
	projects, err := r.ListProjects()
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("No projects found.")
		return nil
	}

	for _, p := range projects {
		fmt.Println(userStyle.Render(p.Name))
		fmt.Println(dimStyle.Render(fmt.Sprintf("  %d session(s) · %s", p.SessionCount, relativeTime(p.LastModified))))
	}
	return nil
}
