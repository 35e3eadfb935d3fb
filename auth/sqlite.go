// auth/sqlite.go
package auth

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the session in a local SQLite database. The CLI
// uses it so a sign-in survives across invocations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the session database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			user_json TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load returns the stored session, or nil when none is stored.
func (s *SQLiteStore) Load() (*Session, error) {
	var session Session
	var expiresAt, userJSON string

	err := s.db.QueryRow(`
		SELECT access_token, refresh_token, expires_at, user_json FROM session WHERE id = 1
	`).Scan(&session.AccessToken, &session.RefreshToken, &expiresAt, &userJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if err := json.Unmarshal([]byte(userJSON), &session.User); err != nil {
		return nil, fmt.Errorf("parse user: %w", err)
	}
	return &session, nil
}

// Save upserts the stored session.
func (s *SQLiteStore) Save(session *Session) error {
	userJSON, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO session (id, access_token, refresh_token, expires_at, user_json)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			user_json = excluded.user_json
	`, session.AccessToken, session.RefreshToken,
		session.ExpiresAt.UTC().Format(time.RFC3339), string(userJSON))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
