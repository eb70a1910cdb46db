package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lexcodex/codebuddy/framework"
)

// SQLiteStore persists conversation turns, working-memory snapshots and the
// approval history in one SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// SessionInfo summarises one stored session.
type SessionInfo struct {
	SessionID  string    `json:"session_id"`
	Turns      int       `json:"turns"`
	Successful int       `json:"successful"`
	LastActive time.Time `json:"last_active"`
}

// OpenSQLiteStore opens/creates the database at dbPath. ":memory:" is
// accepted for tests.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("database path required")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		user_input TEXT,
		reasoning TEXT,
		actions TEXT,
		results TEXT,
		files_touched TEXT,
		success BOOLEAN,
		lessons TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id, timestamp);
	CREATE TABLE IF NOT EXISTS working_memory (
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT,
		updated_at TIMESTAMP,
		PRIMARY KEY(session_id, key)
	);
	CREATE TABLE IF NOT EXISTS approvals (
		request_id TEXT,
		timestamp TIMESTAMP NOT NULL,
		tool TEXT NOT NULL,
		operation TEXT,
		description TEXT,
		risk INTEGER,
		approved BOOLEAN,
		details TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveTurn upserts a turn.
func (s *SQLiteStore) SaveTurn(ctx context.Context, turn framework.ConversationTurn) error {
	if turn.ID == "" {
		return errors.New("turn id required")
	}
	actions, err := encodeList(turn.Actions)
	if err != nil {
		return err
	}
	results, err := encodeList(turn.Results)
	if err != nil {
		return err
	}
	files, err := encodeList(turn.FilesTouched)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO conversations (
		id, session_id, timestamp, user_input, reasoning, actions, results,
		files_touched, success, lessons
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		session_id=excluded.session_id,
		timestamp=excluded.timestamp,
		user_input=excluded.user_input,
		reasoning=excluded.reasoning,
		actions=excluded.actions,
		results=excluded.results,
		files_touched=excluded.files_touched,
		success=excluded.success,
		lessons=excluded.lessons
	`
	_, err = s.db.ExecContext(ctx, query,
		turn.ID,
		turn.SessionID,
		turn.Timestamp.UTC(),
		turn.UserInput,
		turn.Reasoning,
		actions,
		results,
		files,
		turn.Success,
		turn.Lessons,
	)
	if err != nil {
		return fmt.Errorf("save turn %s: %w", turn.ID, err)
	}
	return nil
}

// RecentTurns returns up to n of the session's most recent turns, oldest
// first. An empty sessionID spans every session; n <= 0 means all.
func (s *SQLiteStore) RecentTurns(ctx context.Context, sessionID string, n int) ([]framework.ConversationTurn, error) {
	query := `SELECT id, session_id, timestamp, user_input, reasoning, actions, results,
		files_touched, success, lessons FROM conversations`
	var args []interface{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY timestamp DESC, rowid DESC`
	if n > 0 {
		query += ` LIMIT ?`
		args = append(args, n)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var turns []framework.ConversationTurn
	for rows.Next() {
		var (
			turn                    framework.ConversationTurn
			reasoning, lessons      sql.NullString
			actions, results, files sql.NullString
		)
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Timestamp, &turn.UserInput, &reasoning,
			&actions, &results, &files, &turn.Success, &lessons); err != nil {
			return nil, err
		}
		turn.Reasoning = reasoning.String
		turn.Lessons = lessons.String
		if turn.Actions, err = decodeList(actions); err != nil {
			return nil, err
		}
		if turn.Results, err = decodeList(results); err != nil {
			return nil, err
		}
		if turn.FilesTouched, err = decodeList(files); err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Sessions lists stored sessions, most recently active first.
func (s *SQLiteStore) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT session_id, COUNT(*), SUM(CASE WHEN success THEN 1 ELSE 0 END), MAX(timestamp)
	FROM conversations GROUP BY session_id ORDER BY MAX(timestamp) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionInfo
	for rows.Next() {
		var (
			info SessionInfo
			last string
		)
		if err := rows.Scan(&info.SessionID, &info.Turns, &info.Successful, &last); err != nil {
			return nil, err
		}
		info.LastActive = parseTimestamp(last)
		out = append(out, info)
	}
	return out, rows.Err()
}

// ClearSession removes a session's turns and working memory.
func (s *SQLiteStore) ClearSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM working_memory WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveWorkingMemory replaces the session's working-memory snapshot.
func (s *SQLiteStore) SaveWorkingMemory(ctx context.Context, sessionID string, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM working_memory WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	now := time.Now().UTC()
	for k, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO working_memory (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)`,
			sessionID, k, v, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadWorkingMemory returns the session's last snapshot.
func (s *SQLiteStore) LoadWorkingMemory(ctx context.Context, sessionID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM working_memory WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var (
			key   string
			value sql.NullString
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value.String
	}
	return out, rows.Err()
}

func encodeList(items []string) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(raw sql.NullString) ([]string, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// parseTimestamp reads the text form go-sqlite3 returns for aggregate
// timestamp columns.
func parseTimestamp(raw string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999Z07:00",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
