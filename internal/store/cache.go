// Package store provides a SQLite-backed cache for parsed sessions.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/ctxburn/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrSessionNotFound is returned by LoadSession for an unknown ID.
var ErrSessionNotFound = errors.New("session not found")

// Cache provides SQLite-backed session caching.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// migrate creates the schema, discarding a cache built under another
// version. The cache only holds derived data, so nothing is lost.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version != schemaVersion {
		if _, err := db.Exec(dropSQL); err != nil {
			return err
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return err
	}
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// FileInfo holds the tracked mtime and size for a file.
type FileInfo struct {
	MtimeNs   int64
	SizeBytes int64
}

// GetTrackedFiles returns a map of file_path -> FileInfo for all tracked files.
func (c *Cache) GetTrackedFiles() (map[string]FileInfo, error) {
	rows, err := c.db.Query("SELECT file_path, mtime_ns, size_bytes FROM file_tracker")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]FileInfo)
	for rows.Next() {
		var path string
		var fi FileInfo
		if err := rows.Scan(&path, &fi.MtimeNs, &fi.SizeBytes); err != nil {
			return nil, err
		}
		result[path] = fi
	}
	return result, rows.Err()
}

// SaveSession replaces the session parsed from s.FilePath, with its tasks and
// messages, and records the file's tracking info, all in one transaction.
func (c *Cache) SaveSession(s model.Session, mtimeNs, sizeBytes int64) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM sessions WHERE file_path = ?", s.FilePath); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(`INSERT INTO sessions
		(file_path, session_id, agentic_tool, parent_session_id, title,
		 file_mtime_ns, file_size, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.FilePath, s.ID, s.AgenticTool, nullString(s.ParentID), nullString(s.Title),
		mtimeNs, sizeBytes, now,
	)
	if err != nil {
		return err
	}

	for i, t := range s.Tasks {
		var limit sql.NullInt64
		if t.ContextWindowLimit != nil {
			limit = sql.NullInt64{Int64: *t.ContextWindowLimit, Valid: true}
		}
		_, err = tx.Exec(`INSERT INTO tasks
			(file_path, seq, task_id, created_at, model, usage, context_window_limit)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.FilePath, i, t.ID, formatTime(t.CreatedAt), nullString(t.Model), nullBytes(t.Usage), limit,
		)
		if err != nil {
			return err
		}
	}

	for i, m := range s.Messages {
		_, err = tx.Exec(`INSERT INTO messages
			(file_path, seq, message_id, task_id, type, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.FilePath, i, m.ID, nullString(m.TaskID), m.Type, nullBytes(m.Content), formatTime(m.CreatedAt),
		)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO file_tracker (file_path, mtime_ns, size_bytes)
		VALUES (?, ?, ?)`, s.FilePath, mtimeNs, sizeBytes)
	if err != nil {
		return err
	}

	return tx.Commit()
}

const sessionColumns = `session_id, agentic_tool, parent_session_id, title, file_path`

// LoadSession reads one session with its tasks and messages. When several
// files carry the same session ID, the one with the lowest path wins.
func (c *Cache) LoadSession(sessionID string) (model.Session, error) {
	row := c.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE session_id = ? ORDER BY file_path LIMIT 1", sessionID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return model.Session{}, err
	}

	sessions := []model.Session{s}
	idx := map[string]int{s.FilePath: 0}
	if err := c.loadTasks(sessions, idx, "WHERE file_path = ?", s.FilePath); err != nil {
		return model.Session{}, err
	}
	if err := c.loadMessages(sessions, idx, "WHERE file_path = ?", s.FilePath); err != nil {
		return model.Session{}, err
	}
	return sessions[0], nil
}

// LoadAllSessions reads all cached sessions from the database.
func (c *Cache) LoadAllSessions() ([]model.Session, error) {
	rows, err := c.db.Query("SELECT " + sessionColumns + " FROM sessions ORDER BY session_id, file_path")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Build session index for fast lookup
	idx := make(map[string]int, len(sessions))
	for i, s := range sessions {
		idx[s.FilePath] = i
	}

	if err := c.loadTasks(sessions, idx, ""); err != nil {
		return nil, err
	}
	if err := c.loadMessages(sessions, idx, ""); err != nil {
		return nil, err
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (model.Session, error) {
	var s model.Session
	var parent, title sql.NullString
	if err := row.Scan(&s.ID, &s.AgenticTool, &parent, &title, &s.FilePath); err != nil {
		return s, err
	}
	s.ParentID = parent.String
	s.Title = title.String
	return s, nil
}

func (c *Cache) loadTasks(sessions []model.Session, idx map[string]int, where string, args ...any) error {
	rows, err := c.db.Query(`SELECT file_path, task_id, created_at, model, usage, context_window_limit
		FROM tasks `+where+` ORDER BY file_path, seq`, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			path             string
			t                model.Task
			createdAt, mdl   sql.NullString
			usage            []byte
			contextWindowLim sql.NullInt64
		)
		if err := rows.Scan(&path, &t.ID, &createdAt, &mdl, &usage, &contextWindowLim); err != nil {
			return err
		}
		t.CreatedAt = parseTime(createdAt)
		t.Model = mdl.String
		if usage != nil {
			t.Usage = usage
		}
		if contextWindowLim.Valid {
			v := contextWindowLim.Int64
			t.ContextWindowLimit = &v
		}
		if i, ok := idx[path]; ok {
			sessions[i].Tasks = append(sessions[i].Tasks, t)
		}
	}
	return rows.Err()
}

func (c *Cache) loadMessages(sessions []model.Session, idx map[string]int, where string, args ...any) error {
	rows, err := c.db.Query(`SELECT file_path, message_id, task_id, type, content, created_at
		FROM messages `+where+` ORDER BY file_path, seq`, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			path              string
			m                 model.Message
			taskID, createdAt sql.NullString
			content           []byte
		)
		if err := rows.Scan(&path, &m.ID, &taskID, &m.Type, &content, &createdAt); err != nil {
			return err
		}
		m.TaskID = taskID.String
		m.CreatedAt = parseTime(createdAt)
		if content != nil {
			m.Content = content
		}
		if i, ok := idx[path]; ok {
			sessions[i].Messages = append(sessions[i].Messages, m)
		}
	}
	return rows.Err()
}

// DeleteSession removes every cached session with the given ID and its
// associated data.
func (c *Cache) DeleteSession(sessionID string) error {
	_, err := c.db.Exec("DELETE FROM sessions WHERE session_id = ?", sessionID)
	return err
}

// DeleteFileTracker removes a file tracking entry and any session parsed
// from that file.
func (c *Cache) DeleteFileTracker(filePath string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM sessions WHERE file_path = ?", filePath); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM file_tracker WHERE file_path = ?", filePath); err != nil {
		return err
	}
	return tx.Commit()
}

// SessionCount returns the number of cached sessions.
func (c *Cache) SessionCount() (int, error) {
	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count)
	return count, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullBytes stores raw JSON as TEXT, or NULL when absent.
func nullBytes(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: len(b) > 0}
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s.String)
	return t
}
