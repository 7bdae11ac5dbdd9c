package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// CloudStore is the remote profile store: one snapshot per user, read once
// at sign-in and written after the debounce quiet period. Remote data is
// untrusted and is sanitized on the way in.
type CloudStore interface {
	// Load returns the stored snapshot for userID, or found=false if the
	// user has no remote profile yet.
	Load(ctx context.Context, userID string) (state PersistedState, found bool, err error)
	Save(ctx context.Context, userID string, state PersistedState) error
	Close() error
}

// SQLiteStore implements CloudStore on a SQLite database. It stands in for
// the hosted profile API: same contract, local file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the profile database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile database: %w", err)
	}

	// WAL keeps reads from blocking the debounced writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	migration := `CREATE TABLE IF NOT EXISTS game_profiles (
		user_id    TEXT PRIMARY KEY,
		state      TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load fetches and sanitizes the stored snapshot for userID.
func (s *SQLiteStore) Load(ctx context.Context, userID string) (PersistedState, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM game_profiles WHERE user_id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return PersistedState{}, false, nil
	}
	if err != nil {
		return PersistedState{}, false, fmt.Errorf("failed to load profile: %w", err)
	}
	return Sanitize([]byte(raw)), true, nil
}

// Save upserts the snapshot for userID.
func (s *SQLiteStore) Save(ctx context.Context, userID string, state PersistedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO game_profiles (user_id, state, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		userID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
