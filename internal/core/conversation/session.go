package conversation

import (
	"fmt"
	"sort"

	"cchat/pkg/cclog"
)

// Session is one logical conversation: a chain of one or more files linked
// by compaction, identified by the session ID of its most recent file.
// Everything derived from it is a read-only projection of the on-disk
// bytes at load time.
type Session struct {
	files []*cclog.File
	trees []*Tree
}

// New builds a session from the files of one compaction family. Files are
// ordered oldest first by modification time; the last file is the live
// one. Tree construction failures are session-fatal.
func New(files ...*cclog.File) (*Session, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("session requires at least one file")
	}

	ordered := make([]*cclog.File, len(files))
	copy(ordered, files)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Mtime.Before(ordered[j].Mtime)
	})

	s := &Session{files: ordered}
	for _, f := range ordered {
		t, err := NewTree(f)
		if err != nil {
			return nil, err
		}
		s.trees = append(s.trees, t)
	}
	return s, nil
}

// ID returns the session ID of the most recent file.
func (s *Session) ID() string { return s.latest().SessionID }

// Summary returns the stored summary of the most recent file that has one.
func (s *Session) Summary() string {
	for i := len(s.files) - 1; i >= 0; i-- {
		if s.files[i].Summary != "" {
			return s.files[i].Summary
		}
	}
	return ""
}

// Files returns the session's files, oldest first.
func (s *Session) Files() []*cclog.File { return s.files }

// Trees returns the per-file entry trees, oldest first.
func (s *Session) Trees() []*Tree { return s.trees }

// IsRoot reports whether the session has no compaction predecessors: a
// single file whose initial entry carries no logical parent link.
func (s *Session) IsRoot() bool {
	if len(s.files) > 1 {
		return false
	}
	first := s.latest().FirstEntry()
	return first == nil || first.LogicalParentUUID == ""
}

// Warnings returns the recoverable issues collected across all files.
func (s *Session) Warnings() []string {
	var out []string
	for _, f := range s.files {
		for _, w := range f.Warnings {
			out = append(out, w.String())
		}
	}
	return out
}

func (s *Session) latest() *cclog.File { return s.files[len(s.files)-1] }

func (s *Session) latestTree() *Tree { return s.trees[len(s.trees)-1] }

// lookup finds an entry by uuid across all trees, most recent file first.
// Compaction chains are short and the logical parent is overwhelmingly in
// the immediately preceding file, so a linear scan is fine.
func (s *Session) lookup(uuid string) (*cclog.Entry, int) {
	for i := len(s.trees) - 1; i >= 0; i-- {
		if e := s.trees[i].Entry(uuid); e != nil {
			return e, i
		}
	}
	return nil, -1
}
