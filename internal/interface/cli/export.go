package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cbroglie/mustache"
	"github.com/spf13/cobra"

	"cchat/internal/core/conversation"
)

const defaultExportTemplate = `# {{title}}

**Session ID:** ` + "`{{sessionId}}`" + `
**Turns:** {{turnCount}}

---

{{#turns}}
{{#isCompactSummary}}
> _Compact summary_
{{/isCompactSummary}}
{{#boundaryCrossed}}
> _Context compacted here_
{{/boundaryCrossed}}
{{#user}}
**USER** {{#timestamp}}_{{timestamp}}_{{/timestamp}}

{{user}}

{{/user}}
{{#assistant}}
**ASSISTANT**

{{assistant}}

{{/assistant}}
---

{{/turns}}
`

var (
	exportOutput string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export [session]",
	Short: "Export a conversation to markdown or JSON",
	Long: `Export a conversation's active path.

Formats:
  markdown  rendered through a mustache template (default)
  turns     turns as JSON
  raw       path entries as JSON

A custom template at ~/.config/cchat/export_template.md replaces the
built-in markdown layout.

Examples:
  cchat export
  cchat export 2 -o session.md
  cchat export --format turns`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "markdown", "Export format: markdown, turns, raw")
}

func runExport(cmd *cobra.Command, args []string) error {
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
	turns := conversation.GroupTurns(path, conversation.TurnOptions{CollectTools: true})

	var content string
	switch exportFormat {
	case "markdown", "md":
		content, err = renderMarkdown(s, turns)
	case "turns":
		var data []byte
		data, err = json.MarshalIndent(exportableTurns(turns), "", "  ")
		content = string(data) + "\n"
	case "raw":
		var data []byte
		data, err = json.MarshalIndent(exportableEntries(path), "", "  ")
		content = string(data) + "\n"
	default:
		return fmt.Errorf("unknown format %q (markdown, turns, raw)", exportFormat)
	}
	if err != nil {
		return err
	}

	if exportOutput == "" {
		fmt.Print(content)
		return nil
	}

	out := exportOutput
	if !filepath.IsAbs(out) {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		out = filepath.Join(cwd, out)
	}
	if err := os.WriteFile(out, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	fmt.Printf("Exported to: %s\n", out)
	return nil
}

func renderMarkdown(s *conversation.Session, turns []conversation.Turn) (string, error) {
	tmpl := settings().ExportTemplate
	if tmpl == "" {
		tmpl = defaultExportTemplate
	}

	title := s.Summary()
	if title == "" {
		title = s.ID()
	}

	turnCtx := make([]map[string]interface{}, 0, len(turns))
	for _, t := range turns {
		ctx := map[string]interface{}{
			"index":            t.Index,
			"user":             t.UserText,
			"assistant":        t.AssistantText,
			"isCompactSummary": t.IsCompactSummary,
			"boundaryCrossed":  t.BoundaryCrossed,
		}
		if !t.Timestamp.IsZero() {
			ctx["timestamp"] = t.Timestamp.Format("Jan 02, 2006 15:04:05")
		}
		turnCtx = append(turnCtx, ctx)
	}

	return mustache.Render(tmpl, map[string]interface{}{
		"title":     title,
		"sessionId": s.ID(),
		"turnCount": len(turns),
		"turns":     turnCtx,
	})
}

func exportableTurns(turns []conversation.Turn) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(turns))
	for _, t := range turns {
		m := map[string]interface{}{
			"index":     t.Index,
			"uuid":      t.UUID,
			"user":      t.UserText,
			"assistant": t.AssistantText,
		}
		if t.IsCompactSummary {
			m["isCompactSummary"] = true
		}
		if t.BoundaryCrossed {
			m["boundaryCrossed"] = true
		}
		if len(t.ToolCalls) > 0 {
			tools := make([]map[string]interface{}, 0, len(t.ToolCalls))
			for _, call := range t.ToolCalls {
				tools = append(tools, map[string]interface{}{
					"name":    call.Name,
					"result":  call.Result,
					"isError": call.IsError,
				})
			}
			m["tools"] = tools
		}
		out = append(out, m)
	}
	return out
}

func exportableEntries(path *conversation.Path) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(path.Entries))
	for _, pe := range path.Entries {
		m := map[string]interface{}{
			"uuid":      pe.UUID,
			"kind":      string(pe.Kind),
			"fileIndex": pe.FileIndex,
		}
		if pe.ParentUUID != "" {
			m["parentUuid"] = pe.ParentUUID
		}
		if !pe.Timestamp.IsZero() {
			m["timestamp"] = pe.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		if pe.Text != "" {
			m["text"] = pe.Text
		}
		if pe.Boundary {
			m["boundary"] = true
		}
		out = append(out, m)
	}
	return out
}
