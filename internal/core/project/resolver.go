// Package project maps working directories to Claude Code log directories
// and locates session files within them.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Resolver locates project log directories under the Claude projects dir.
type Resolver struct {
	ProjectsDir string
}

// NewResolver uses ~/.claude/projects, honoring CLAUDE_CONFIG_DIR.
func NewResolver() *Resolver {
	base := os.Getenv("CLAUDE_CONFIG_DIR")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".claude")
	}
	return &Resolver{ProjectsDir: filepath.Join(base, "projects")}
}

// Key mangles an absolute path into Claude Code's project directory name:
// every separator becomes a dash, so /home/user/project is
// -home-user-project and / alone is -.
func Key(path string) string {
	clean := filepath.Clean(path)
	if clean == string(filepath.Separator) {
		return "-"
	}
	return strings.ReplaceAll(clean, string(filepath.Separator), "-")
}

// FindProjectDir returns the log directory for a working directory, first
// by exact key match and then case-insensitively.
func (r *Resolver) FindProjectDir(cwd string) (string, bool) {
	key := Key(cwd)
	candidate := filepath.Join(r.ProjectsDir, key)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, true
	}

	entries, err := os.ReadDir(r.ProjectsDir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.EqualFold(e.Name(), key) {
			return filepath.Join(r.ProjectsDir, e.Name()), true
		}
	}
	return "", false
}

// ResolveDir finds the project directory for an override (a project key,
// a partial directory name, or a real filesystem path) or, when the
// override is empty, the current working directory.
func (r *Resolver) ResolveDir(override string) (string, error) {
	if override == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir, ok := r.FindProjectDir(cwd)
		if !ok {
			return "", fmt.Errorf("no Claude project found for %s", cwd)
		}
		return dir, nil
	}

	// Exact key or directory name.
	candidate := filepath.Join(r.ProjectsDir, override)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, nil
	}

	// A real path that maps to a project.
	if abs, err := filepath.Abs(override); err == nil {
		if dir, ok := r.FindProjectDir(abs); ok {
			return dir, nil
		}
	}

	// Partial name match.
	entries, err := os.ReadDir(r.ProjectsDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() && strings.Contains(strings.ToLower(e.Name()), strings.ToLower(override)) {
				return filepath.Join(r.ProjectsDir, e.Name()), nil
			}
		}
	}

	return "", fmt.Errorf("project %q not found under %s", override, r.ProjectsDir)
}

// Info describes one known project.
type Info struct {
	Name         string
	Path         string
	SessionCount int
	LastModified time.Time
}

// ListProjects returns all projects that contain at least one session
// file, most recently modified first.
func (r *Resolver) ListProjects() ([]Info, error) {
	entries, err := os.ReadDir(r.ProjectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read projects dir: %w", err)
	}

	var projects []Info
	for _, e := range entries {
		if !isDirOrSymlink(e, r.ProjectsDir) {
			continue
		}
		dir := filepath.Join(r.ProjectsDir, e.Name())
		files, err := SessionFiles(dir)
		if err != nil || len(files) == 0 {
			continue
		}
		info := Info{Name: e.Name(), Path: dir, SessionCount: len(files)}
		for _, f := range files {
			if fi, err := os.Stat(f); err == nil && fi.ModTime().After(info.LastModified) {
				info.LastModified = fi.ModTime()
			}
		}
		projects = append(projects, info)
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].LastModified.After(projects[j].LastModified)
	})
	return projects, nil
}

// isDirOrSymlink reports whether the entry is a directory or a symlink
// resolving to one.
func isDirOrSymlink(entry os.DirEntry, parentDir string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(filepath.Join(parentDir, entry.Name()))
	return err == nil && fi.IsDir()
}

// SessionFiles lists the session JSONL files of a project directory,
// newest first. Subagent files (agent-*.jsonl) are excluded: they belong
// to their parent sessions.
func SessionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read project dir: %w", err)
	}

	type fileWithTime struct {
		path  string
		mtime time.Time
	}
	var files []fileWithTime
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		if strings.HasPrefix(e.Name(), "agent-") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, fileWithTime{path: path, mtime: fi.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].mtime.After(files[j].mtime)
	})

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

// ResolveSessionFile turns a session reference into a file path. An empty
// reference picks the most recent session; a number picks by position in
// the listing (1 = most recent); anything else is matched as a session ID
// prefix, where an ambiguous prefix is an error.
func ResolveSessionFile(dir, ref string) (string, error) {
	files, err := SessionFiles(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no sessions found in %s", dir)
	}

	if ref == "" {
		return files[0], nil
	}

	if n, err := parseIndex(ref); err == nil {
		if n < 1 || n > len(files) {
			return "", fmt.Errorf("session index %d out of range (1-%d)", n, len(files))
		}
		return files[n-1], nil
	}

	var matches []string
	for _, f := range files {
		stem := strings.TrimSuffix(filepath.Base(f), ".jsonl")
		if strings.HasPrefix(stem, ref) {
			matches = append(matches, f)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no session matching %q", ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("session prefix %q is ambiguous (%d matches)", ref, len(matches))
	}
}

func parseIndex(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a number")
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
