package index

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Result represents a single search result
type Result struct {
	MessageUUID    string
	SessionID      string
	SessionSummary string
	FilePath       string
	MessageText    string
	Timestamp      string
	ProjectDir     string
}

// Most recent first
const defaultOrderBy = "m.timestamp DESC"

// Search performs a full-text search over indexed message text,
// restricted to one project dir when projectDir is non-empty. Queries
// containing characters FTS5 mishandles fall back to LIKE substring
// matching.
func (db *DB) Search(query, projectDir string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 1000
	}

	hasSpecialChars := strings.ContainsAny(query, "-_@#$%&")

	scope := ""
	args := []interface{}{query}
	if projectDir != "" {
		scope = "AND s.project_dir = ?"
		args = append(args, projectDir)
	}
	args = append(args, limit)

	var rows *sql.Rows
	var err error

	if hasSpecialChars {
		rows, err = db.Query(fmt.Sprintf(`
			SELECT
				m.uuid,
				s.session_id,
				COALESCE(s.summary, ''),
				s.file_path,
				m.text_content,
				m.timestamp,
				s.project_dir
			FROM messages m
			JOIN sessions s ON s.id = m.session_id
			WHERE m.text_content LIKE '%%' || ? || '%%' %s
			ORDER BY %s
			LIMIT ?
		`, scope, defaultOrderBy), args...)
	} else {
		rows, err = db.Query(fmt.Sprintf(`
			SELECT
				m.uuid,
				s.session_id,
				COALESCE(s.summary, ''),
				s.file_path,
				snippet(messages_fts, -1, '', '', '...', 64) as snippet,
				m.timestamp,
				s.project_dir
			FROM messages_fts
			JOIN messages m ON messages_fts.rowid = m.id
			JOIN sessions s ON s.id = m.session_id
			WHERE messages_fts MATCH ? %s
			ORDER BY %s
			LIMIT ?
		`, scope, defaultOrderBy), args...)
	}
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.MessageUUID,
			&r.SessionID,
			&r.SessionSummary,
			&r.FilePath,
			&r.MessageText,
			&r.Timestamp,
			&r.ProjectDir,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

// SessionRow is one indexed session.
type SessionRow struct {
	SessionID  string
	FilePath   string
	ProjectDir string
	Summary    string
	GitBranch  string
	EntryCount int
	UpdatedAt  time.Time
}

// ListSessions returns indexed sessions, most recently updated first,
// restricted to one project dir when projectDir is non-empty.
func (db *DB) ListSessions(projectDir string, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 100
	}

	q := `
		SELECT session_id, file_path, project_dir, COALESCE(summary, ''),
		       COALESCE(git_branch, ''), entry_count, updated_at
		FROM sessions
	`
	args := []interface{}{}
	if projectDir != "" {
		q += " WHERE project_dir = ?"
		args = append(args, projectDir)
	}
	q += " ORDER BY updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []SessionRow
	for rows.Next() {
		var s SessionRow
		if err := rows.Scan(&s.SessionID, &s.FilePath, &s.ProjectDir, &s.Summary,
			&s.GitBranch, &s.EntryCount, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
