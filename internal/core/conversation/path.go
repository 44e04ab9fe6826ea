package conversation

import (
	"fmt"

	"cchat/pkg/cclog"
)

// PathEntry is one step of a resolved active path.
type PathEntry struct {
	*cclog.Entry
	FileIndex int // index into Session.Files()

	// Boundary marks the first entry of a post-compaction segment: the
	// walk crossed a stitch to reach this entry's predecessor.
	Boundary bool
	// Positional is set when that stitch used the positional fallback
	// instead of an exact logical-parent match.
	Positional bool
}

// Path is the single chronological lineage from a tip back to a root,
// excluding abandoned branches.
type Path struct {
	Entries []PathEntry
	// Ambiguous is set when any boundary was resolved positionally. The
	// result is lower-confidence and must be labeled as such downstream.
	Ambiguous bool
	Warnings  []string
}

// Contains reports whether the uuid is on the path.
func (p *Path) Contains(uuid string) bool {
	for i := range p.Entries {
		if p.Entries[i].UUID == uuid {
			return true
		}
	}
	return false
}

// UUIDSet returns the set of uuids on the path.
func (p *Path) UUIDSet() map[string]bool {
	set := make(map[string]bool, len(p.Entries))
	for i := range p.Entries {
		set[p.Entries[i].UUID] = true
	}
	return set
}

// PathOptions controls resolution.
type PathOptions struct {
	// NoStitch stops the walk at the newest file's compaction boundary
	// instead of continuing into predecessor history.
	NoStitch bool
	// Branch selects the n-th meaningful branch alternative (1-based,
	// file order) and resolves the path through it. 0 follows the latest
	// leaf, which is what actually happened.
	Branch int
	// TipUUID overrides the walk origin.
	TipUUID string
}

// ActivePath resolves the default path: latest leaf, stitched.
func (s *Session) ActivePath() (*Path, error) {
	return s.Path(PathOptions{})
}

// Path walks parent links backward from the tip to an absolute root or an
// exhausted stitch chain, then reverses the chain to chronological order.
func (s *Session) Path(opts PathOptions) (*Path, error) {
	tip, fileIdx, err := s.pickTip(opts)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return &Path{}, nil
	}

	path := &Path{}
	visited := make(map[string]bool)
	var rev []PathEntry

	cur, idx := tip, fileIdx
	for cur != nil {
		if visited[cur.UUID] {
			return nil, &UnresolvableRootError{Path: s.files[idx].Path, UUID: cur.UUID}
		}
		visited[cur.UUID] = true
		pe := PathEntry{Entry: cur, FileIndex: idx}

		// Ordinary step: parent resolves within the same file.
		if cur.ParentUUID != "" {
			if p := s.trees[idx].Entry(cur.ParentUUID); p != nil {
				rev = append(rev, pe)
				cur = p
				continue
			}
		}

		// No in-file parent: absolute root or compaction boundary.
		if opts.NoStitch {
			rev = append(rev, pe)
			break
		}

		if lp := cur.LogicalParentUUID; lp != "" {
			if target, tIdx := s.lookup(lp); target != nil && !visited[target.UUID] {
				pe.Boundary = true
				rev = append(rev, pe)
				cur, idx = target, tIdx
				continue
			}
		}

		if idx > 0 {
			// Best-effort heuristic: continue at the chronologically last
			// entry of the immediately preceding file. Lower-confidence
			// than an exact link, so it is flagged all the way through.
			if cont := s.trees[idx-1].Tip(); cont != nil && !visited[cont.UUID] {
				pe.Boundary = true
				pe.Positional = true
				path.Ambiguous = true
				path.Warnings = append(path.Warnings, fmt.Sprintf(
					"stitched positionally: %s has no resolvable logical parent, continuing at tail of %s",
					cur.UUID, s.files[idx-1].Path))
				rev = append(rev, pe)
				cur, idx = cont, idx-1
				continue
			}
		}

		if cur.LogicalParentUUID != "" {
			path.Warnings = append(path.Warnings, fmt.Sprintf(
				"unresolvable logical parent %s of %s: stitch chain exhausted",
				cur.LogicalParentUUID, cur.UUID))
		}
		rev = append(rev, pe)
		break
	}

	path.Entries = make([]PathEntry, len(rev))
	for i := range rev {
		path.Entries[len(rev)-1-i] = rev[i]
	}
	return path, nil
}

func (s *Session) pickTip(opts PathOptions) (*cclog.Entry, int, error) {
	if opts.TipUUID != "" {
		e, idx := s.lookup(opts.TipUUID)
		if e == nil {
			return nil, 0, fmt.Errorf("entry %s not found in session %s", opts.TipUUID, s.ID())
		}
		return e, idx, nil
	}
	if opts.Branch > 0 {
		return s.branchTip(opts.Branch)
	}
	return s.latestTree().Tip(), len(s.trees) - 1, nil
}

// branchTip resolves the n-th meaningful branch alternative to its deepest
// descendant, so the returned tip yields the alternative's full lineage.
func (s *Session) branchTip(n int) (*cclog.Entry, int, error) {
	policy := DefaultBranchPolicy()

	type alt struct {
		uuid string
		idx  int
	}
	var alts []alt
	for idx, t := range s.trees {
		for _, parent := range t.order {
			kids := t.Children(parent)
			if len(kids) < 2 || t.mechanicalFork(parent, kids, policy) {
				continue
			}
			for _, k := range kids {
				alts = append(alts, alt{uuid: k, idx: idx})
			}
		}
	}

	if len(alts) == 0 {
		return nil, 0, fmt.Errorf("session %s has no branches", s.ID())
	}
	if n > len(alts) {
		return nil, 0, fmt.Errorf("branch %d out of range (session has %d)", n, len(alts))
	}

	chosen := alts[n-1]
	t := s.trees[chosen.idx]
	cur := t.Entry(chosen.uuid)
	for steps := 0; steps <= t.Len(); steps++ {
		next := latestChild(t, cur.UUID)
		if next == nil {
			return cur, chosen.idx, nil
		}
		cur = next
	}
	return nil, 0, &UnresolvableRootError{Path: t.File().Path, UUID: cur.UUID}
}

// latestChild picks the newest non-sidechain child, timestamp first and
// file position as the tie-break.
func latestChild(t *Tree, uuid string) *cclog.Entry {
	var best *cclog.Entry
	for _, k := range t.Children(uuid) {
		c := t.Entry(k)
		if c.IsSidechain {
			continue
		}
		if best == nil || c.Timestamp.After(best.Timestamp) ||
			(c.Timestamp.Equal(best.Timestamp) && c.Sequence > best.Sequence) {
			best = c
		}
	}
	return best
}
