// Package mcp exposes reconstructed conversations to agent clients over
// the Model Context Protocol on stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"cchat/internal/core/conversation"
	"cchat/internal/core/index"
	"cchat/internal/core/project"
)

// sessionSummary represents a session in the list view
type sessionSummary struct {
	SessionID  string `json:"session_id"`
	Summary    string `json:"summary"`
	Project    string `json:"project"`
	UpdatedAt  string `json:"updated_at"`
	EntryCount int    `json:"entry_count"`
}

// turnDetail is one reconstructed turn of a conversation
type turnDetail struct {
	Index            int    `json:"index"`
	User             string `json:"user,omitempty"`
	Assistant        string `json:"assistant,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
	IsCompactSummary bool   `json:"is_compact_summary,omitempty"`
	BoundaryCrossed  bool   `json:"boundary_crossed,omitempty"`
}

// searchMatch is one message hit
type searchMatch struct {
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
	Snippet   string `json:"snippet"`
	Timestamp string `json:"timestamp"`
}

// StartServer starts the MCP server
func StartServer() error {
	db, err := index.Open(index.DefaultPath())
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Error closing index: %v", closeErr)
		}
	}()

	s := server.NewMCPServer(
		"cchat",
		"1.0.0",
	)

	listTool := mcp.NewTool("list_sessions",
		mcp.WithDescription("List recent Claude Code sessions, optionally filtered by project"),
		mcp.WithNumber("limit",
			mcp.Description("Max sessions to return (default: 20)")),
		mcp.WithString("project",
			mcp.Description("Filter by project (name, key, or path)")),
	)
	s.AddTool(listTool, makeListSessionsHandler(db))

	viewTool := mcp.NewTool("view_session",
		mcp.WithDescription("View a Claude Code session's active conversation path as turns, resolved through retries and compactions"),
		mcp.WithString("session",
			mcp.Required(),
			mcp.Description("Session ID prefix, or listing index")),
		mcp.WithString("project",
			mcp.Description("Project the session belongs to (name, key, or path)")),
		mcp.WithNumber("last_turns",
			mcp.Description("Only return the trailing N turns")),
	)
	s.AddTool(viewTool, makeViewSessionHandler())

	searchTool := mcp.NewTool("search_sessions",
		mcp.WithDescription("Search message text across Claude Code sessions"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term to match against message content")),
		mcp.WithString("project",
			mcp.Description("Restrict to one project (name, key, or path)")),
		mcp.WithNumber("limit",
			mcp.Description("Max matches to return (default: 10)")),
	)
	s.AddTool(searchTool, makeSearchSessionsHandler(db))

	return server.ServeStdio(s)
}

// syncProjects refreshes the index before a query (fast incremental check)
func syncProjects(db *index.DB, projectArg string) (string, error) {
	r := project.NewResolver()

	if projectArg != "" {
		dir, err := r.ResolveDir(projectArg)
		if err != nil {
			return "", err
		}
		_, err = db.SyncProject(dir)
		return filepath.Base(dir), err
	}

	projects, err := r.ListProjects()
	if err != nil {
		return "", err
	}
	for _, p := range projects {
		if _, err := db.SyncProject(p.Path); err != nil {
			return "", err
		}
	}
	return "", nil
}

func makeListSessionsHandler(db *index.DB) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectArg := request.GetString("project", "")
		limit := request.GetInt("limit", 20)

		scope, err := syncProjects(db, projectArg)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
		}

		rows, err := db.ListSessions(scope, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}

		results := make([]sessionSummary, 0, len(rows))
		for _, row := range rows {
			results = append(results, sessionSummary{
				SessionID:  row.SessionID,
				Summary:    row.Summary,
				Project:    row.ProjectDir,
				UpdatedAt:  row.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
				EntryCount: row.EntryCount,
			})
		}

		resultJSON, err := json.Marshal(map[string]interface{}{"sessions": results})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func makeViewSessionHandler() func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionArg, err := request.RequireString("session")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		projectArg := request.GetString("project", "")
		last := request.GetInt("last_turns", 0)

		r := project.NewResolver()
		dir, err := r.ResolveDir(projectArg)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("project not found: %v", err)), nil
		}
		path, err := project.ResolveSessionFile(dir, sessionArg)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("session not found: %v", err)), nil
		}
		files, err := project.LoadFamily(dir, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load session: %v", err)), nil
		}
		s, err := conversation.New(files...)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to build session: %v", err)), nil
		}
		p, err := s.ActivePath()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to resolve path: %v", err)), nil
		}
		turns := conversation.GroupTurns(p, conversation.TurnOptions{})
		if last > 0 && last < len(turns) {
			turns = turns[len(turns)-last:]
		}

		out := make([]turnDetail, 0, len(turns))
		for _, t := range turns {
			td := turnDetail{
				Index:            t.Index,
				User:             t.UserText,
				Assistant:        t.AssistantText,
				IsCompactSummary: t.IsCompactSummary,
				BoundaryCrossed:  t.BoundaryCrossed,
			}
			if !t.Timestamp.IsZero() {
				td.Timestamp = t.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00")
			}
			out = append(out, td)
		}

		resultJSON, err := json.Marshal(map[string]interface{}{
			"session_id": s.ID(),
			"summary":    s.Summary(),
			"stitched":   !s.IsRoot(),
			"turns":      out,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func makeSearchSessionsHandler(db *index.DB) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		projectArg := request.GetString("project", "")
		limit := request.GetInt("limit", 10)

		scope, err := syncProjects(db, projectArg)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
		}

		results, err := db.Search(query, scope, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		matches := make([]searchMatch, 0, len(results))
		for _, res := range results {
			matches = append(matches, searchMatch{
				SessionID: res.SessionID,
				Summary:   res.SessionSummary,
				Snippet:   res.MessageText,
				Timestamp: res.Timestamp,
			})
		}

		resultJSON, err := json.Marshal(map[string]interface{}{"matches": matches})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}
