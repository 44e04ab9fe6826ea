package conversation

import (
	"strings"

	"cchat/pkg/cclog"
)

// BranchPolicy decides which entry kinds count as mechanical when a node
// has multiple children. Callers can tighten or loosen the set without
// touching the detector.
type BranchPolicy struct {
	MechanicalKinds map[cclog.Kind]bool
}

// DefaultBranchPolicy treats tool results, progress and system entries as
// mechanical fan-out.
func DefaultBranchPolicy() BranchPolicy {
	return BranchPolicy{MechanicalKinds: map[cclog.Kind]bool{
		cclog.KindToolResult: true,
		cclog.KindProgress:   true,
		cclog.KindSystem:     true,
	}}
}

// PolicyFromKinds builds a policy from configured kind names.
func PolicyFromKinds(kinds []string) BranchPolicy {
	if len(kinds) == 0 {
		return DefaultBranchPolicy()
	}
	set := make(map[cclog.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[cclog.Kind(k)] = true
	}
	return BranchPolicy{MechanicalKinds: set}
}

// BranchChild is one alternative continuation at a branch point.
type BranchChild struct {
	UUID     string
	Kind     cclog.Kind
	Preview  string
	IsActive bool // on the active path; false means "alternate, not on active path"
}

// Branch is a tree node whose children represent genuinely alternate
// conversation continuations.
type Branch struct {
	ParentUUID string
	Children   []BranchChild
	Label      string
}

// AlternativeUUIDs returns the children not on the active path.
func (b *Branch) AlternativeUUIDs() []string {
	var out []string
	for _, c := range b.Children {
		if !c.IsActive {
			out = append(out, c.UUID)
		}
	}
	return out
}

// Branches classifies every multi-child node across the session's trees.
// The mapping is computed from the tree indices alone; pass the active
// path's uuid set to mark on-path children, or nil to skip marking.
func (s *Session) Branches(policy BranchPolicy, active map[string]bool) map[string]*Branch {
	out := make(map[string]*Branch)
	for _, t := range s.trees {
		for _, parent := range t.order {
			kids := t.Children(parent)
			if len(kids) < 2 || t.mechanicalFork(parent, kids, policy) {
				continue
			}
			b := &Branch{ParentUUID: parent}
			for _, k := range kids {
				c := t.Entry(k)
				b.Children = append(b.Children, BranchChild{
					UUID:     k,
					Kind:     c.Kind,
					Preview:  preview(c),
					IsActive: active[k],
				})
			}
			b.Label = branchLabel(t, kids)
			out[parent] = b
		}
	}
	return out
}

// mechanicalFork reports whether a multi-child node is tool fan-out or
// bookkeeping rather than a conversational branch. A parent that issued
// tool calls fans out into results and progress entries; anything with
// fewer than two independent conversational children is mechanical.
func (t *Tree) mechanicalFork(parent string, kids []string, policy BranchPolicy) bool {
	if p := t.Entry(parent); p != nil && p.Kind == cclog.KindAssistant && p.HasToolUse() {
		return true
	}
	meaningful := 0
	for _, k := range kids {
		c := t.Entry(k)
		if c.IsSidechain || c.IsMeta || c.IsCompactSummary {
			continue
		}
		if policy.MechanicalKinds[c.Kind] {
			continue
		}
		meaningful++
	}
	return meaningful < 2
}

func branchLabel(t *Tree, kids []string) string {
	users, assistants := 0, 0
	for _, k := range kids {
		switch t.Entry(k).Kind {
		case cclog.KindUser:
			users++
		case cclog.KindAssistant:
			assistants++
		}
	}
	switch {
	case assistants >= 2 && users == 0:
		return "retried here"
	case users >= 2 && assistants == 0:
		return "edited and resent"
	default:
		return "diverged here"
	}
}

func preview(e *cclog.Entry) string {
	text := strings.TrimSpace(e.Text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	const max = 60
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
