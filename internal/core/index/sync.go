package index

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cchat/internal/core/project"
	"cchat/pkg/cclog"
)

// SyncStats reports what a sync pass did.
type SyncStats struct {
	Scanned  int
	Imported int
	Updated  int
	Skipped  int
}

// SyncProject indexes every session file in one project directory.
// Files whose hash matches the stored one are skipped; changed files
// are reindexed in place.
func (db *DB) SyncProject(dir string) (SyncStats, error) {
	var stats SyncStats

	files, err := project.SessionFiles(dir)
	if err != nil {
		return stats, err
	}

	for _, path := range files {
		stats.Scanned++
		changed, existing, err := db.fileChanged(path)
		if err != nil {
			return stats, err
		}
		if !changed {
			stats.Skipped++
			continue
		}

		f, err := cclog.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse %s: %v\n", path, err)
			continue
		}
		if err := db.indexFile(f, dir, existing); err != nil {
			return stats, fmt.Errorf("failed to index %s: %w", path, err)
		}
		if existing {
			stats.Updated++
		} else {
			stats.Imported++
		}
	}

	return stats, nil
}

// fileChanged reports whether the file needs (re)indexing and whether a
// row for it already exists.
func (db *DB) fileChanged(path string) (changed, existing bool, err error) {
	hash, err := fileHash(path)
	if err != nil {
		return false, false, fmt.Errorf("failed to hash file: %w", err)
	}

	var stored string
	err = db.QueryRow("SELECT file_hash FROM sessions WHERE file_path = ?", path).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return true, false, nil
		}
		return false, false, err
	}
	return stored != hash, true, nil
}

func (db *DB) indexFile(f *cclog.File, dir string, existing bool) error {
	hash, err := fileHash(f.Path)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if existing {
		// Cascade clears messages; the FTS trigger follows.
		if _, err := tx.Exec(`DELETE FROM sessions WHERE file_path = ?`, f.Path); err != nil {
			return err
		}
	}

	createdAt := f.Mtime
	updatedAt := f.Mtime
	if first := f.FirstEntry(); first != nil && !first.Timestamp.IsZero() {
		createdAt = first.Timestamp
	}
	if last := f.LastEntry(); last != nil && !last.Timestamp.IsZero() {
		updatedAt = last.Timestamp
	}

	var cwd, gitBranch, version string
	for i := range f.Entries {
		e := &f.Entries[i]
		if cwd == "" {
			cwd = e.CWD
		}
		if gitBranch == "" {
			gitBranch = e.GitBranch
		}
		if version == "" {
			version = e.Version
		}
	}

	result, err := tx.Exec(`
		INSERT INTO sessions (
			session_id, file_path, project_dir, summary, leaf_uuid,
			cwd, git_branch, created_at, updated_at, entry_count,
			version, file_hash, file_size, file_mtime
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.SessionID,
		f.Path,
		filepath.Base(dir),
		f.Summary,
		f.LeafUUID,
		cwd,
		gitBranch,
		createdAt,
		updatedAt,
		len(f.Entries),
		version,
		hash,
		f.Size,
		f.Mtime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	sessionDBID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get session ID: %w", err)
	}

	for i := range f.Entries {
		e := &f.Entries[i]
		if e.UUID == "" || e.Text == "" {
			continue
		}
		_, err := tx.Exec(`
			INSERT INTO messages (
				uuid, session_id, parent_uuid, kind, text_content,
				timestamp, sequence, is_sidechain
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.UUID,
			sessionDBID,
			e.ParentUUID,
			string(e.Kind),
			e.Text,
			e.Timestamp,
			e.Sequence,
			e.IsSidechain,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message %s: %w", e.UUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

func fileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
