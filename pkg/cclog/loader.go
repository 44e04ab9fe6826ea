// Package cclog reads Claude Code session JSONL files into structured
// entries. It owns line parsing and entry-kind classification only; tree
// building and path resolution live in internal/core/conversation.
package cclog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ParseWarning records a line that failed structural parsing. The line is
// skipped; it never occupies a tree position and never aborts the load.
type ParseWarning struct {
	Path string
	Line int
	Err  error
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("%s line %d: %v", filepath.Base(w.Path), w.Line, w.Err)
}

// File is one parsed session file.
type File struct {
	Path      string
	SessionID string
	Summary   string // from the summary line, if any
	LeafUUID  string
	Entries   []Entry
	Warnings  []ParseWarning
	Size      int64
	Mtime     time.Time
}

// LastEntry returns the chronologically last non-sidechain entry with a
// uuid, preferring the latest timestamp and falling back to file position.
// Returns nil for an empty file.
func (f *File) LastEntry() *Entry {
	var last *Entry
	for i := range f.Entries {
		e := &f.Entries[i]
		if e.UUID == "" || e.IsSidechain {
			continue
		}
		if last == nil || e.Timestamp.After(last.Timestamp) ||
			(e.Timestamp.Equal(last.Timestamp) && e.Sequence > last.Sequence) {
			last = e
		}
	}
	return last
}

// FirstEntry returns the first entry with a uuid, or nil.
func (f *File) FirstEntry() *Entry {
	for i := range f.Entries {
		if f.Entries[i].UUID != "" {
			return &f.Entries[i]
		}
	}
	return nil
}

// Lookup returns the entry with the given uuid, or nil.
func (f *File) Lookup(uuid string) *Entry {
	if uuid == "" {
		return nil
	}
	for i := range f.Entries {
		if f.Entries[i].UUID == uuid {
			return &f.Entries[i]
		}
	}
	return nil
}

// rawEntry mirrors one JSONL line. Field names are the external log
// producer's contract.
type rawEntry struct {
	Type                      string          `json:"type"`
	Subtype                   string          `json:"subtype,omitempty"`
	Summary                   string          `json:"summary,omitempty"`
	LeafUUID                  string          `json:"leafUuid,omitempty"`
	UUID                      string          `json:"uuid,omitempty"`
	ParentUUID                string          `json:"parentUuid,omitempty"`
	LogicalParentUUID         string          `json:"logicalParentUuid,omitempty"`
	SessionID                 string          `json:"sessionId,omitempty"`
	Message                   json.RawMessage `json:"message,omitempty"`
	Timestamp                 string          `json:"timestamp,omitempty"`
	IsSidechain               bool            `json:"isSidechain,omitempty"`
	IsMeta                    bool            `json:"isMeta,omitempty"`
	IsCompactSummary          bool            `json:"isCompactSummary,omitempty"`
	IsVisibleInTranscriptOnly bool            `json:"isVisibleInTranscriptOnly,omitempty"`
	ToolUseResult             json.RawMessage `json:"toolUseResult,omitempty"`
	CWD                       string          `json:"cwd,omitempty"`
	GitBranch                 string          `json:"gitBranch,omitempty"`
	Version                   string          `json:"version,omitempty"`
}

// Load parses a session JSONL file. Malformed lines are collected as
// warnings; a duplicate uuid within the file is a hard error because it
// signals corruption the tree cannot represent.
func Load(path string) (file *File, err error) {
	f, ferr := os.Open(path)
	if ferr != nil {
		return nil, fmt.Errorf("failed to open file: %w", ferr)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	sessionID := filepath.Base(path)
	sessionID = sessionID[:len(sessionID)-len(filepath.Ext(sessionID))]

	// Agent files keep the filename as the session ID: their sessionId
	// field points to the parent session, not the agent.
	isAgentFile := strings.HasPrefix(sessionID, "agent-")

	file = &File{
		Path:      path,
		SessionID: sessionID,
		Size:      info.Size(),
		Mtime:     info.ModTime(),
	}

	reader := bufio.NewReaderSize(f, 64*1024)

	seen := make(map[string]int)
	lineNum := -1

	for {
		line, rerr := readLine(reader)
		if rerr != nil && rerr != io.EOF && !errors.Is(rerr, errLineTooLong) {
			return nil, fmt.Errorf("error reading file: %w", rerr)
		}
		atEOF := rerr == io.EOF

		if errors.Is(rerr, errLineTooLong) {
			lineNum++
			file.Warnings = append(file.Warnings, ParseWarning{Path: path, Line: lineNum, Err: rerr})
			continue
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if atEOF {
				break
			}
			lineNum++
			continue
		}
		lineNum++

		var raw rawEntry
		if uerr := json.Unmarshal(line, &raw); uerr != nil {
			file.Warnings = append(file.Warnings, ParseWarning{
				Path: path,
				Line: lineNum,
				Err:  fmt.Errorf("invalid entry: %w", uerr),
			})
			continue
		}

		if raw.Type == "summary" {
			file.Summary = raw.Summary
			file.LeafUUID = raw.LeafUUID
			if raw.SessionID != "" && !isAgentFile {
				file.SessionID = raw.SessionID
			}
		}

		if raw.SessionID != "" && file.SessionID == sessionID && !isAgentFile {
			file.SessionID = raw.SessionID
		}

		entry, perr := parseEntry(&raw, lineNum)
		if perr != nil {
			file.Warnings = append(file.Warnings, ParseWarning{Path: path, Line: lineNum, Err: perr})
			continue
		}

		if entry.UUID != "" {
			if prev, dup := seen[entry.UUID]; dup {
				return nil, fmt.Errorf("%s: duplicate uuid %s at lines %d and %d",
					filepath.Base(path), entry.UUID, prev, lineNum)
			}
			seen[entry.UUID] = lineNum
		}

		file.Entries = append(file.Entries, *entry)

		if atEOF {
			break
		}
	}

	return file, nil
}

// maxLineBytes caps one line; tool results can be very long.
const maxLineBytes = 10 * 1024 * 1024

var errLineTooLong = errors.New("line exceeds 10MB limit, skipped")

// readLine reads one newline-terminated line. A line over the cap is
// drained to the next newline and reported as errLineTooLong, so the
// rest of the file stays readable.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if err != bufio.ErrBufferFull {
			return line, err
		}
		if len(line) > maxLineBytes {
			for {
				_, derr := r.ReadSlice('\n')
				if derr == nil || derr == io.EOF {
					return nil, errLineTooLong
				}
				if derr != bufio.ErrBufferFull {
					return nil, derr
				}
			}
		}
	}
}

func parseEntry(raw *rawEntry, sequence int) (*Entry, error) {
	e := &Entry{
		UUID:                      raw.UUID,
		ParentUUID:                raw.ParentUUID,
		LogicalParentUUID:         raw.LogicalParentUUID,
		Type:                      raw.Type,
		Subtype:                   raw.Subtype,
		Sequence:                  sequence,
		Message:                   raw.Message,
		ToolUseResult:             raw.ToolUseResult,
		Summary:                   raw.Summary,
		LeafUUID:                  raw.LeafUUID,
		SessionID:                 raw.SessionID,
		CWD:                       raw.CWD,
		GitBranch:                 raw.GitBranch,
		Version:                   raw.Version,
		IsSidechain:               raw.IsSidechain,
		IsMeta:                    raw.IsMeta,
		IsCompactSummary:          raw.IsCompactSummary,
		IsVisibleInTranscriptOnly: raw.IsVisibleInTranscriptOnly,
	}

	if raw.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, raw.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp: %w", err)
		}
		e.Timestamp = t
	}

	e.Kind = classify(e)
	e.Text = extractText(e)
	return e, nil
}

// classify derives the structural kind. The raw type alone is ambiguous:
// a user-typed record whose content is tool_result blocks is a mechanical
// continuation, not a human message.
func classify(e *Entry) Kind {
	switch e.Type {
	case "summary":
		return KindSummary
	case "assistant":
		return KindAssistant
	case "progress":
		return KindProgress
	case "system":
		return KindSystem
	case "user":
		for _, b := range e.Blocks() {
			if b.Type == "tool_result" {
				return KindToolResult
			}
		}
		if len(e.ToolUseResult) > 0 {
			return KindToolResult
		}
		return KindUser
	case "file-history-snapshot", "queue-operation":
		return KindProgress
	default:
		return KindSystem
	}
}

// extractText pulls displayable text out of the message payload. Content
// is either a plain string (older user entries) or an array of blocks.
func extractText(e *Entry) string {
	if len(e.Message) == 0 {
		return ""
	}
	var env messageEnvelope
	if err := json.Unmarshal(e.Message, &env); err != nil {
		return ""
	}

	var s string
	if err := json.Unmarshal(env.Content, &s); err == nil {
		return s
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(env.Content, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
