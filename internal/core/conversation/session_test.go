package conversation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cchat/pkg/cclog"
)

func writeSessionFile(t *testing.T, dir, name string, mtime time.Time, lines ...string) *cclog.File {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	f, err := cclog.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

var baseTime = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

// simpleLines is a linear three-turn conversation.
func simpleLines() []string {
	return []string{
		`{"type":"summary","summary":"Simple test conversation","leafUuid":"u6"}`,
		`{"type":"user","uuid":"u1","parentUuid":null,"timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"Hello"}}`,
		`{"type":"assistant","uuid":"u2","parentUuid":"u1","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Hi there"}]}}`,
		`{"type":"user","uuid":"u3","parentUuid":"u2","timestamp":"2025-01-15T10:00:10Z","message":{"role":"user","content":"How are you?"}}`,
		`{"type":"assistant","uuid":"u4","parentUuid":"u3","timestamp":"2025-01-15T10:00:15Z","message":{"role":"assistant","content":[{"type":"text","text":"I am fine"}]}}`,
		`{"type":"user","uuid":"u5","parentUuid":"u4","timestamp":"2025-01-15T10:00:20Z","message":{"role":"user","content":"Bye"}}`,
		`{"type":"assistant","uuid":"u6","parentUuid":"u5","timestamp":"2025-01-15T10:00:25Z","message":{"role":"assistant","content":[{"type":"text","text":"See you later"}]}}`,
	}
}

func pathUUIDs(p *Path) []string {
	out := make([]string, len(p.Entries))
	for i, pe := range p.Entries {
		out[i] = pe.UUID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestActivePathSimpleLinear(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "simple.jsonl", baseTime, simpleLines()...)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	p, err := s.ActivePath()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	if got := pathUUIDs(p); !equalStrings(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}
	if p.Ambiguous {
		t.Error("Ambiguous = true for a linear session")
	}
}

func TestActivePathIsSimplePath(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "simple.jsonl", baseTime, simpleLines()...)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.ActivePath()
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, pe := range p.Entries {
		if seen[pe.UUID] {
			t.Fatalf("uuid %s repeated on active path", pe.UUID)
		}
		seen[pe.UUID] = true
	}
}

func TestActivePathFollowsLatestBranch(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "branched.jsonl", baseTime,
		`{"type":"user","uuid":"b1","parentUuid":null,"timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"Question"}}`,
		`{"type":"assistant","uuid":"b2","parentUuid":"b1","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Context"}]}}`,
		`{"type":"assistant","uuid":"b3","parentUuid":"b2","timestamp":"2025-01-15T10:00:10Z","message":{"role":"assistant","content":[{"type":"text","text":"option A"}]}}`,
		`{"type":"user","uuid":"b4","parentUuid":"b3","timestamp":"2025-01-15T10:00:15Z","message":{"role":"user","content":"hm"}}`,
		`{"type":"assistant","uuid":"b5","parentUuid":"b2","timestamp":"2025-01-15T10:00:20Z","message":{"role":"assistant","content":[{"type":"text","text":"option B"}]}}`,
		`{"type":"user","uuid":"b6","parentUuid":"b5","timestamp":"2025-01-15T10:00:25Z","message":{"role":"user","content":"better"}}`,
	)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	p, err := s.ActivePath()
	if err != nil {
		t.Fatal(err)
	}
	got := pathUUIDs(p)
	if !equalStrings(got, []string{"b1", "b2", "b5", "b6"}) {
		t.Errorf("path = %v, want the b5 branch", got)
	}
}

func TestBranchSelection(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "branched.jsonl", baseTime,
		`{"type":"user","uuid":"b1","parentUuid":null,"timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"Question"}}`,
		`{"type":"assistant","uuid":"b2","parentUuid":"b1","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Context"}]}}`,
		`{"type":"assistant","uuid":"b3","parentUuid":"b2","timestamp":"2025-01-15T10:00:10Z","message":{"role":"assistant","content":[{"type":"text","text":"option A"}]}}`,
		`{"type":"user","uuid":"b4","parentUuid":"b3","timestamp":"2025-01-15T10:00:15Z","message":{"role":"user","content":"hm"}}`,
		`{"type":"assistant","uuid":"b5","parentUuid":"b2","timestamp":"2025-01-15T10:00:20Z","message":{"role":"assistant","content":[{"type":"text","text":"option B"}]}}`,
	)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	p1, err := s.Path(PathOptions{Branch: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := pathUUIDs(p1); !equalStrings(got, []string{"b1", "b2", "b3", "b4"}) {
		t.Errorf("branch 1 path = %v", got)
	}

	p2, err := s.Path(PathOptions{Branch: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := pathUUIDs(p2); !equalStrings(got, []string{"b1", "b2", "b5"}) {
		t.Errorf("branch 2 path = %v", got)
	}

	if _, err := s.Path(PathOptions{Branch: 5}); err == nil {
		t.Error("branch 5 should be out of range")
	}
}

func TestCycleDetection(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "cycle.jsonl", baseTime,
		`{"type":"user","uuid":"c1","parentUuid":"c2","timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"a"}}`,
		`{"type":"assistant","uuid":"c2","parentUuid":"c1","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"b"}]}}`,
	)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.ActivePath()
	var rootErr *UnresolvableRootError
	if !errors.As(err, &rootErr) {
		t.Fatalf("ActivePath() error = %v, want UnresolvableRootError", err)
	}
}

func TestIntegrityErrorOnDanglingParent(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "dangling.jsonl", baseTime,
		`{"type":"user","uuid":"d1","parentUuid":null,"timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"a"}}`,
		`{"type":"assistant","uuid":"d2","parentUuid":"missing","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"b"}]}}`,
	)

	_, err := New(f)
	var intErr *IntegrityError
	if !errors.As(err, &intErr) {
		t.Fatalf("New() error = %v, want IntegrityError", err)
	}
	if intErr.UUID != "d2" {
		t.Errorf("IntegrityError.UUID = %q, want d2", intErr.UUID)
	}
}

func TestFileInitialDanglingParentAllowed(t *testing.T) {
	// A dangling parent on the file's first entry is a compaction
	// boundary candidate, not corruption.
	f := writeSessionFile(t, t.TempDir(), "initial.jsonl", baseTime,
		`{"type":"user","uuid":"d1","parentUuid":"elsewhere","timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"a"}}`,
		`{"type":"assistant","uuid":"d2","parentUuid":"d1","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"b"}]}}`,
	)

	if _, err := New(f); err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
}

func TestEmptySession(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "empty.jsonl", baseTime, "")
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.ActivePath()
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Entries) != 0 {
		t.Errorf("path of empty session has %d entries", len(p.Entries))
	}
}

// Scenario C: file 2 opens with a compact boundary whose logicalParentUuid
// matches an entry in file 1.
func TestStitchExactAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	f1 := writeSessionFile(t, dir, "old.jsonl", baseTime,
		`{"type":"user","uuid":"o1","parentUuid":null,"timestamp":"2025-01-15T09:00:00Z","message":{"role":"user","content":"Start"}}`,
		`{"type":"assistant","uuid":"o2","parentUuid":"o1","timestamp":"2025-01-15T09:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Working"}]}}`,
	)
	f2 := writeSessionFile(t, dir, "new.jsonl", baseTime.Add(time.Hour),
		`{"type":"system","uuid":"n1","parentUuid":null,"subtype":"compact_boundary","logicalParentUuid":"o2","timestamp":"2025-01-15T10:00:00Z"}`,
		`{"type":"user","uuid":"n2","parentUuid":"n1","isCompactSummary":true,"timestamp":"2025-01-15T10:00:01Z","message":{"role":"user","content":"[Summary of earlier conversation]"}}`,
		`{"type":"assistant","uuid":"n3","parentUuid":"n2","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Continuing"}]}}`,
	)

	s, err := New(f1, f2)
	if err != nil {
		t.Fatal(err)
	}

	p, err := s.ActivePath()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"o1", "o2", "n1", "n2", "n3"}
	if got := pathUUIDs(p); !equalStrings(got, want) {
		t.Fatalf("stitched path = %v, want %v", got, want)
	}
	if p.Ambiguous {
		t.Error("exact stitch flagged ambiguous")
	}

	var boundary *PathEntry
	for i := range p.Entries {
		if p.Entries[i].Boundary {
			boundary = &p.Entries[i]
		}
	}
	if boundary == nil || boundary.UUID != "n1" {
		t.Fatalf("boundary flag not on n1: %+v", boundary)
	}
	if boundary.Positional {
		t.Error("exact stitch flagged positional")
	}

	turns := GroupTurns(p, TurnOptions{})
	var crossed bool
	for _, turn := range turns {
		if turn.BoundaryCrossed {
			crossed = true
		}
	}
	if !crossed {
		t.Error("no turn carries the boundary-crossed flag")
	}

	if s.IsRoot() {
		t.Error("IsRoot() = true for a compacted session")
	}
}

// Scenario D: no logical parent and no match; fallback links to file 1's
// chronologically last entry and the result is flagged.
func TestStitchPositionalFallback(t *testing.T) {
	dir := t.TempDir()
	f1 := writeSessionFile(t, dir, "old.jsonl", baseTime,
		`{"type":"user","uuid":"o1","parentUuid":null,"timestamp":"2025-01-15T09:00:00Z","message":{"role":"user","content":"Start"}}`,
		`{"type":"assistant","uuid":"o2","parentUuid":"o1","timestamp":"2025-01-15T09:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Working"}]}}`,
	)
	f2 := writeSessionFile(t, dir, "new.jsonl", baseTime.Add(time.Hour),
		`{"type":"user","uuid":"n1","parentUuid":null,"timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"And then?"}}`,
		`{"type":"assistant","uuid":"n2","parentUuid":"n1","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Then this"}]}}`,
	)

	s, err := New(f1, f2)
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.ActivePath()
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"o1", "o2", "n1", "n2"}
	if got := pathUUIDs(p); !equalStrings(got, want) {
		t.Fatalf("fallback path = %v, want %v", got, want)
	}
	if !p.Ambiguous {
		t.Error("positional fallback not flagged ambiguous")
	}
	if len(p.Warnings) == 0 {
		t.Error("positional fallback produced no warning")
	}

	var boundary *PathEntry
	for i := range p.Entries {
		if p.Entries[i].Boundary {
			boundary = &p.Entries[i]
		}
	}
	if boundary == nil || boundary.UUID != "n1" || !boundary.Positional {
		t.Fatalf("expected positional boundary at n1, got %+v", boundary)
	}
}

func TestNoStitchStopsAtBoundary(t *testing.T) {
	dir := t.TempDir()
	f1 := writeSessionFile(t, dir, "old.jsonl", baseTime,
		`{"type":"user","uuid":"o1","parentUuid":null,"timestamp":"2025-01-15T09:00:00Z","message":{"role":"user","content":"Start"}}`,
	)
	f2 := writeSessionFile(t, dir, "new.jsonl", baseTime.Add(time.Hour),
		`{"type":"system","uuid":"n1","parentUuid":null,"subtype":"compact_boundary","logicalParentUuid":"o1","timestamp":"2025-01-15T10:00:00Z"}`,
		`{"type":"user","uuid":"n2","parentUuid":"n1","timestamp":"2025-01-15T10:00:01Z","message":{"role":"user","content":"go on"}}`,
	)

	s, err := New(f1, f2)
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.Path(PathOptions{NoStitch: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := pathUUIDs(p); !equalStrings(got, []string{"n1", "n2"}) {
		t.Errorf("no-stitch path = %v, want [n1 n2]", got)
	}
}

func TestIntraFileCompactBoundary(t *testing.T) {
	// Microcompaction keeps history in one file: the boundary's logical
	// parent resolves within the same tree.
	f := writeSessionFile(t, t.TempDir(), "compacted.jsonl", baseTime,
		`{"type":"user","uuid":"m1","parentUuid":null,"timestamp":"2025-01-15T09:00:00Z","message":{"role":"user","content":"Start"}}`,
		`{"type":"assistant","uuid":"m2","parentUuid":"m1","timestamp":"2025-01-15T09:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Working"}]}}`,
		`{"type":"system","uuid":"m3","parentUuid":null,"subtype":"compact_boundary","logicalParentUuid":"m2","timestamp":"2025-01-15T10:00:00Z"}`,
		`{"type":"user","uuid":"m4","parentUuid":"m3","isCompactSummary":true,"timestamp":"2025-01-15T10:00:01Z","message":{"role":"user","content":"[Summary]"}}`,
		`{"type":"assistant","uuid":"m5","parentUuid":"m4","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Continuing"}]}}`,
	)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	p, err := s.ActivePath()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"m1", "m2", "m3", "m4", "m5"}
	if got := pathUUIDs(p); !equalStrings(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}

	np, err := s.Path(PathOptions{NoStitch: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := pathUUIDs(np); !equalStrings(got, []string{"m3", "m4", "m5"}) {
		t.Errorf("no-stitch path = %v, want [m3 m4 m5]", got)
	}
}

func TestStitchIdempotent(t *testing.T) {
	dir := t.TempDir()
	f1 := writeSessionFile(t, dir, "old.jsonl", baseTime,
		`{"type":"user","uuid":"o1","parentUuid":null,"timestamp":"2025-01-15T09:00:00Z","message":{"role":"user","content":"Start"}}`,
	)
	f2 := writeSessionFile(t, dir, "new.jsonl", baseTime.Add(time.Hour),
		`{"type":"system","uuid":"n1","parentUuid":null,"subtype":"compact_boundary","logicalParentUuid":"o1","timestamp":"2025-01-15T10:00:00Z"}`,
		`{"type":"user","uuid":"n2","parentUuid":"n1","timestamp":"2025-01-15T10:00:01Z","message":{"role":"user","content":"go on"}}`,
	)

	s, err := New(f1, f2)
	if err != nil {
		t.Fatal(err)
	}

	p1, err := s.ActivePath()
	if err != nil {
		t.Fatal(err)
	}
	p2, err := s.ActivePath()
	if err != nil {
		t.Fatal(err)
	}

	if !equalStrings(pathUUIDs(p1), pathUUIDs(p2)) {
		t.Error("re-resolution changed the linearization")
	}
	for i := range p1.Entries {
		if p1.Entries[i].Boundary != p2.Entries[i].Boundary ||
			p1.Entries[i].Positional != p2.Entries[i].Positional {
			t.Errorf("boundary flags differ at %d", i)
		}
	}

	t1 := GroupTurns(p1, TurnOptions{})
	t2 := GroupTurns(p2, TurnOptions{})
	if len(t1) != len(t2) {
		t.Fatalf("turn counts differ: %d vs %d", len(t1), len(t2))
	}
	for i := range t1 {
		if t1[i].UUID != t2[i].UUID || t1[i].BoundaryCrossed != t2[i].BoundaryCrossed {
			t.Errorf("turn %d differs between resolutions", i)
		}
	}
}

func TestTipOverride(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "simple.jsonl", baseTime, simpleLines()...)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.Path(PathOptions{TipUUID: "u4"})
	if err != nil {
		t.Fatal(err)
	}
	if got := pathUUIDs(p); !equalStrings(got, []string{"u1", "u2", "u3", "u4"}) {
		t.Errorf("path = %v", got)
	}

	if _, err := s.Path(PathOptions{TipUUID: "nope"}); err == nil {
		t.Error("unknown tip should fail")
	}
}
