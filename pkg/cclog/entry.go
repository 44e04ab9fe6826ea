package cclog

import (
	"encoding/json"
	"time"
)

// Kind classifies an entry for structural purposes. It is derived from the
// raw type discriminator plus payload shape: a "user"-typed record whose
// content is tool_result blocks is KindToolResult, not KindUser.
type Kind string

const (
	KindUser       Kind = "user"
	KindAssistant  Kind = "assistant"
	KindSystem     Kind = "system"
	KindToolResult Kind = "tool_result"
	KindSummary    Kind = "summary"
	KindProgress   Kind = "progress"
)

// System entry subtypes.
const (
	SubtypeInit            = "init"
	SubtypeTurnDuration    = "turn_duration"
	SubtypeCompactBoundary = "compact_boundary"
)

// Entry is one logged event from a session file.
type Entry struct {
	UUID              string
	ParentUUID        string
	LogicalParentUUID string // set only at compaction boundaries
	Type              string // raw discriminator from the log line
	Subtype           string
	Kind              Kind
	Timestamp         time.Time
	Sequence          int // line index within the source file

	Message       json.RawMessage
	Text          string // concatenated text blocks, or string content
	ToolUseResult json.RawMessage

	// Summary-line fields (type "summary" has no uuid).
	Summary  string
	LeafUUID string

	SessionID string
	CWD       string
	GitBranch string
	Version   string

	IsSidechain               bool
	IsMeta                    bool
	IsCompactSummary          bool
	IsVisibleInTranscriptOnly bool
}

// ContentBlock is one element of a block-form message content array.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// ToolCall is a tool_use block extracted from an assistant entry.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult is a tool_result block extracted from a user-typed entry.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// messageEnvelope is the common shape of the message field. Content is
// either a plain string (older user entries) or an array of blocks.
type messageEnvelope struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Blocks returns the content blocks of the entry's message, or nil for
// string-form and absent content.
func (e *Entry) Blocks() []ContentBlock {
	if len(e.Message) == 0 {
		return nil
	}
	var env messageEnvelope
	if err := json.Unmarshal(e.Message, &env); err != nil {
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(env.Content, &blocks); err != nil {
		return nil
	}
	return blocks
}

// ToolUses returns the tool_use blocks of an assistant entry.
func (e *Entry) ToolUses() []ToolCall {
	var calls []ToolCall
	for _, b := range e.Blocks() {
		if b.Type == "tool_use" {
			calls = append(calls, ToolCall{ID: b.ID, Name: b.Name, Input: b.Input})
		}
	}
	return calls
}

// ToolResults returns the tool_result blocks of a user-typed entry.
func (e *Entry) ToolResults() []ToolResult {
	var results []ToolResult
	for _, b := range e.Blocks() {
		if b.Type != "tool_result" {
			continue
		}
		results = append(results, ToolResult{
			ToolUseID: b.ToolUseID,
			Content:   blockContentText(b.Content),
			IsError:   b.IsError,
		})
	}
	return results
}

// Thinking returns the concatenated thinking blocks of an assistant entry.
func (e *Entry) Thinking() string {
	var out string
	for _, b := range e.Blocks() {
		if b.Type == "thinking" && b.Thinking != "" {
			if out != "" {
				out += "\n"
			}
			out += b.Thinking
		}
	}
	return out
}

// HasToolUse reports whether the entry carries at least one tool_use block.
func (e *Entry) HasToolUse() bool {
	for _, b := range e.Blocks() {
		if b.Type == "tool_use" {
			return true
		}
	}
	return false
}

// blockContentText flattens tool_result content, which is either a string
// or a nested array of text blocks.
func blockContentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var out string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			if out != "" {
				out += "\n"
			}
			out += b.Text
		}
	}
	return out
}

// Classifier decides whether an entry is a genuine human message, as
// opposed to a tool-result continuation that is merely user-typed. The
// discriminating payload fields are owned by the external log format, so
// the rule is pluggable.
type Classifier func(e *Entry) bool

// GenuineUser is the default Classifier: a user-typed entry that is not a
// sidechain, meta, or compact-summary record and whose payload is not a
// tool-result continuation.
func GenuineUser(e *Entry) bool {
	if e.Type != "user" {
		return false
	}
	if e.IsSidechain || e.IsMeta || e.IsCompactSummary {
		return false
	}
	return e.Kind == KindUser
}
