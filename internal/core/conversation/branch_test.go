package conversation

import (
	"testing"

	"cchat/pkg/cclog"
)

// Scenario A: two tool_result siblings are mechanical fan-out.
func TestToolFanOutIsNotABranch(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "fanout.jsonl", baseTime,
		`{"type":"assistant","uuid":"a1","parentUuid":null,"timestamp":"2025-01-15T10:00:00Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"c1","name":"Read","input":{}},{"type":"tool_use","id":"c2","name":"Read","input":{}}]}}`,
		`{"type":"user","uuid":"r1","parentUuid":"a1","timestamp":"2025-01-15T10:00:01Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"c1","content":"one"}]}}`,
		`{"type":"user","uuid":"r2","parentUuid":"a1","timestamp":"2025-01-15T10:00:02Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"c2","content":"two"}]}}`,
	)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	branches := s.Branches(DefaultBranchPolicy(), nil)
	if len(branches) != 0 {
		t.Errorf("branches = %v, want none", branches)
	}
}

// Scenario B: two alternate assistant replies form one meaningful branch.
func TestAlternateAssistantRepliesAreABranch(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "branched.jsonl", baseTime,
		`{"type":"user","uuid":"b1","parentUuid":null,"timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"Question"}}`,
		`{"type":"assistant","uuid":"b2","parentUuid":"b1","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Context"}]}}`,
		`{"type":"assistant","uuid":"b3","parentUuid":"b2","timestamp":"2025-01-15T10:00:10Z","message":{"role":"assistant","content":[{"type":"text","text":"option A"}]}}`,
		`{"type":"assistant","uuid":"b4","parentUuid":"b2","timestamp":"2025-01-15T10:00:20Z","message":{"role":"assistant","content":[{"type":"text","text":"option B"}]}}`,
	)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	p, err := s.ActivePath()
	if err != nil {
		t.Fatal(err)
	}
	branches := s.Branches(DefaultBranchPolicy(), p.UUIDSet())
	if len(branches) != 1 {
		t.Fatalf("len(branches) = %d, want 1", len(branches))
	}

	b, ok := branches["b2"]
	if !ok {
		t.Fatal("branch not recorded at b2")
	}
	if len(b.Children) != 2 {
		t.Fatalf("len(Children) = %d, want 2", len(b.Children))
	}
	if b.Label != "retried here" {
		t.Errorf("Label = %q, want %q", b.Label, "retried here")
	}

	var active, alternates int
	for _, c := range b.Children {
		if c.IsActive {
			active++
			if c.UUID != "b4" {
				t.Errorf("active child = %s, want b4 (latest)", c.UUID)
			}
		} else {
			alternates++
		}
	}
	if active != 1 || alternates != 1 {
		t.Errorf("active/alternate = %d/%d, want 1/1", active, alternates)
	}
	if alts := b.AlternativeUUIDs(); len(alts) != 1 || alts[0] != "b3" {
		t.Errorf("AlternativeUUIDs() = %v, want [b3]", alts)
	}

	previews := []string{b.Children[0].Preview, b.Children[1].Preview}
	if previews[0] != "option A" || previews[1] != "option B" {
		t.Errorf("previews = %v", previews)
	}
}

func TestProgressPlusSingleChildIsMechanical(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "prog.jsonl", baseTime,
		`{"type":"assistant","uuid":"p1","parentUuid":null,"timestamp":"2025-01-15T10:00:00Z","message":{"role":"assistant","content":[{"type":"text","text":"Hi"}]}}`,
		`{"type":"progress","uuid":"c1","parentUuid":"p1","timestamp":"2025-01-15T10:00:01Z"}`,
		`{"type":"user","uuid":"c2","parentUuid":"p1","timestamp":"2025-01-15T10:00:02Z","message":{"role":"user","content":"Next"}}`,
	)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	if branches := s.Branches(DefaultBranchPolicy(), nil); len(branches) != 0 {
		t.Errorf("branches = %v, want none", branches)
	}
}

func TestEditedUserMessagesLabel(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "edited.jsonl", baseTime,
		`{"type":"user","uuid":"e1","parentUuid":null,"timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"Hi"}}`,
		`{"type":"assistant","uuid":"e2","parentUuid":"e1","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Hello"}]}}`,
		`{"type":"user","uuid":"e3","parentUuid":"e2","timestamp":"2025-01-15T10:00:10Z","message":{"role":"user","content":"do X"}}`,
		`{"type":"user","uuid":"e4","parentUuid":"e2","timestamp":"2025-01-15T10:00:20Z","message":{"role":"user","content":"do X carefully"}}`,
	)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	branches := s.Branches(DefaultBranchPolicy(), nil)
	b, ok := branches["e2"]
	if !ok {
		t.Fatal("branch not recorded at e2")
	}
	if b.Label != "edited and resent" {
		t.Errorf("Label = %q", b.Label)
	}
}

func TestCustomPolicyLoosensDetection(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "fanout.jsonl", baseTime,
		`{"type":"user","uuid":"u1","parentUuid":null,"timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"go"}}`,
		`{"type":"system","uuid":"s1","parentUuid":"u1","subtype":"init","timestamp":"2025-01-15T10:00:01Z"}`,
		`{"type":"system","uuid":"s2","parentUuid":"u1","subtype":"init","timestamp":"2025-01-15T10:00:02Z"}`,
	)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	if branches := s.Branches(DefaultBranchPolicy(), nil); len(branches) != 0 {
		t.Fatalf("system siblings should be mechanical by default")
	}

	// A caller may choose a looser definition where only tool results
	// are mechanical.
	loose := PolicyFromKinds([]string{string(cclog.KindToolResult)})
	if branches := s.Branches(loose, nil); len(branches) != 1 {
		t.Errorf("loose policy found %d branches, want 1", len(branches))
	}
}

func TestBranchesComputedWithoutActivePath(t *testing.T) {
	f := writeSessionFile(t, t.TempDir(), "branched.jsonl", baseTime,
		`{"type":"user","uuid":"b1","parentUuid":null,"timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"Q"}}`,
		`{"type":"assistant","uuid":"b2","parentUuid":"b1","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"A1"}]}}`,
		`{"type":"assistant","uuid":"b3","parentUuid":"b1","timestamp":"2025-01-15T10:00:10Z","message":{"role":"assistant","content":[{"type":"text","text":"A2"}]}}`,
	)
	s, err := New(f)
	if err != nil {
		t.Fatal(err)
	}

	branches := s.Branches(DefaultBranchPolicy(), nil)
	if len(branches) != 1 {
		t.Fatalf("len(branches) = %d, want 1", len(branches))
	}
	for _, c := range branches["b1"].Children {
		if c.IsActive {
			t.Error("IsActive set without an active set")
		}
	}
}
