// Package conversation reconstructs readable, chronologically ordered
// conversation turns from the parent-linked entry trees of one or more
// session files, stitching across compaction boundaries.
package conversation

import (
	"cchat/pkg/cclog"
)

// Tree indexes the entries of one file: an arena keyed by uuid plus a side
// index from parent uuid to ordered child uuids. Child order follows file
// order. Entries without a uuid (the summary line) take no tree position.
type Tree struct {
	file     *cclog.File
	entries  map[string]*cclog.Entry
	children map[string][]string
	order    []string // uuids in file order
}

// NewTree builds the index for one file. A parentUuid that references an
// identifier absent from the file is corruption unless the entry is
// file-initial, where a dangling parent marks a compaction boundary
// candidate resolved later by stitching.
func NewTree(f *cclog.File) (*Tree, error) {
	t := &Tree{
		file:     f,
		entries:  make(map[string]*cclog.Entry, len(f.Entries)),
		children: make(map[string][]string),
	}

	for i := range f.Entries {
		e := &f.Entries[i]
		if e.UUID == "" {
			continue
		}
		t.entries[e.UUID] = e
		t.order = append(t.order, e.UUID)
		if e.ParentUUID != "" {
			t.children[e.ParentUUID] = append(t.children[e.ParentUUID], e.UUID)
		}
	}

	for _, uuid := range t.order {
		e := t.entries[uuid]
		if e.ParentUUID == "" {
			continue
		}
		if _, ok := t.entries[e.ParentUUID]; ok {
			continue
		}
		if uuid == t.order[0] {
			continue // boundary candidate, handled by the stitcher
		}
		return nil, &IntegrityError{Path: f.Path, UUID: uuid, ParentUUID: e.ParentUUID}
	}

	return t, nil
}

// File returns the source file the tree was built from.
func (t *Tree) File() *cclog.File { return t.file }

// Entry looks up an entry by uuid, or nil.
func (t *Tree) Entry(uuid string) *cclog.Entry { return t.entries[uuid] }

// Children returns the ordered child uuids of an entry.
func (t *Tree) Children(uuid string) []string { return t.children[uuid] }

// Len returns the number of addressable entries.
func (t *Tree) Len() int { return len(t.order) }

// Roots returns the uuids of entries with no in-file parent, in file
// order. Sidechains make the intra-file tree a forest.
func (t *Tree) Roots() []string {
	var roots []string
	for _, uuid := range t.order {
		e := t.entries[uuid]
		if e.ParentUUID == "" {
			roots = append(roots, uuid)
			continue
		}
		if _, ok := t.entries[e.ParentUUID]; !ok {
			roots = append(roots, uuid)
		}
	}
	return roots
}

// Tip returns the default walk origin: the latest non-sidechain entry by
// timestamp, file position as the secondary key.
func (t *Tree) Tip() *cclog.Entry { return t.file.LastEntry() }
