package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cchat/cmd/cchat/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server that lets agent clients
list, view, and search your Claude Code conversations.

Configure in Claude Desktop's config file (~/.config/claude/config.json):
  {
    "mcpServers": {
      "cchat": {
        "command": "cchat",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	if err := mcp.StartServer(); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
