package conversation

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"cchat/pkg/cclog"
)

// Turn is a maximal run of the active path starting at a genuine user
// message: the user entry plus everything attached to it up to the next
// genuine user message.
type Turn struct {
	Index     int // 1-based position in the session
	UUID      string
	Timestamp time.Time
	Entries   []PathEntry

	UserText      string
	AssistantText string
	Thinking      string
	ToolCalls     []TurnToolCall

	// IsCompactSummary marks a turn opened by a compaction summary, kept
	// visible so users can see where compaction occurred.
	IsCompactSummary bool
	// BoundaryCrossed marks a turn that begins a stitched segment.
	BoundaryCrossed bool
	// Positional propagates the lower-confidence stitch flag.
	Positional bool
}

// TurnToolCall pairs a tool invocation with its matched result.
type TurnToolCall struct {
	ID      string
	Name    string
	Input   json.RawMessage
	Result  string
	IsError bool
}

// TurnOptions configures grouping.
type TurnOptions struct {
	// SuppressBoundaries groups across stitched compaction seams as if
	// the path were contiguous: no forced turn breaks, no summary
	// markers.
	SuppressBoundaries bool
	// Classifier overrides the genuine-user rule. Defaults to
	// cclog.GenuineUser.
	Classifier cclog.Classifier
	// CollectTools extracts tool invocations and their results into each
	// turn.
	CollectTools bool
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// GroupTurns partitions a stitched path into turns. A new turn begins at
// every genuine user entry; user-typed tool results, progress and system
// entries attach to the current turn. Leading non-user entries open an
// implicit turn.
func GroupTurns(path *Path, opts TurnOptions) []Turn {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = cclog.GenuineUser
	}

	var turns []Turn
	var cur *Turn
	pending := make(map[string]int) // tool_use id -> index in cur.ToolCalls

	for _, pe := range path.Entries {
		opens := classifier(pe.Entry)
		marker := !opts.SuppressBoundaries && pe.Type == "user" && pe.IsCompactSummary
		boundary := !opts.SuppressBoundaries && pe.Boundary

		if cur == nil || opens || marker || boundary {
			turns = append(turns, Turn{
				Index:            len(turns) + 1,
				UUID:             pe.UUID,
				Timestamp:        pe.Timestamp,
				IsCompactSummary: marker,
			})
			cur = &turns[len(turns)-1]
			pending = make(map[string]int)
			if opens || marker {
				cur.UserText = strings.TrimSpace(stripANSI(pe.Text))
			}
		}
		if boundary {
			cur.BoundaryCrossed = true
			if pe.Positional {
				cur.Positional = true
			}
		}

		cur.Entries = append(cur.Entries, pe)

		switch pe.Kind {
		case cclog.KindAssistant:
			if text := strings.TrimSpace(pe.Text); text != "" {
				if cur.AssistantText != "" {
					cur.AssistantText += "\n"
				}
				cur.AssistantText += text
			}
			if think := pe.Thinking(); think != "" {
				if cur.Thinking != "" {
					cur.Thinking += "\n"
				}
				cur.Thinking += think
			}
			if opts.CollectTools {
				for _, call := range pe.ToolUses() {
					pending[call.ID] = len(cur.ToolCalls)
					cur.ToolCalls = append(cur.ToolCalls, TurnToolCall{
						ID:    call.ID,
						Name:  call.Name,
						Input: call.Input,
					})
				}
			}
		case cclog.KindToolResult:
			if opts.CollectTools {
				for _, res := range pe.ToolResults() {
					if i, ok := pending[res.ToolUseID]; ok {
						cur.ToolCalls[i].Result = res.Content
						cur.ToolCalls[i].IsError = res.IsError
					}
				}
			}
		}
	}

	return turns
}
