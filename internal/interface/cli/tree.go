package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cchat/internal/core/conversation"
)

var treeCmd = &cobra.Command{
	Use:   "tree [session]",
	Short: "Show the entry graph of a session",
	Long: `Print the parent-linked entry graph of a session as an ASCII tree.

Entries on the active path are marked with *, and meaningful branch
points carry a label describing what happened there.

Examples:
  cchat tree
  cchat tree 2`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTree,
}

func init() {
	rootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, args []string) error {
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}

	s, err := loadConversation(ref)
	if err != nil {
		return err
	}
	printWarnings(s)

	var active map[string]bool
	if p, err := s.ActivePath(); err == nil {
		active = p.UUIDSet()
	}
	branches := s.Branches(branchPolicy(), active)

	var b strings.Builder
	for i, t := range s.Trees() {
		if len(s.Trees()) > 1 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("── file %d ──", i+1)))
			b.WriteString("\n")
		}
		for _, root := range t.Roots() {
			renderSubtree(&b, t, root, "", "", active, branches)
		}
	}
	fmt.Print(b.String())
	return nil
}

func renderSubtree(b *strings.Builder, t *conversation.Tree, uuid, linePrefix, childPrefix string, active map[string]bool, branches map[string]*conversation.Branch) {
	e := t.Entry(uuid)
	if e == nil {
		return
	}

	marker := " "
	if active[uuid] {
		marker = "*"
	}
	line := fmt.Sprintf("%s%s %s [%s]", linePrefix, marker, shortID(uuid), e.Kind)
	if text := firstLine(e.Text); text != "" {
		line += " " + dimStyle.Render(truncate(text, 48))
	}
	if br, ok := branches[uuid]; ok {
		line += " " + seamStyle.Render("("+br.Label+")")
	}
	b.WriteString(line)
	b.WriteString("\n")

	children := t.Children(uuid)
	for i, child := range children {
		if i == len(children)-1 {
			renderSubtree(b, t, child, childPrefix+"└─", childPrefix+"  ", active, branches)
		} else {
			renderSubtree(b, t, child, childPrefix+"├─", childPrefix+"│ ", active, branches)
		}
	}
}

func shortID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
