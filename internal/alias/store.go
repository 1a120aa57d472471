package alias

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrValidation is returned when an alias fails the write-time rules.
var ErrValidation = errors.New("alias validation failed")

// ErrNotFound is returned when a user has no alias configured.
var ErrNotFound = errors.New("alias not found")

// Store is the persistent user -> chat alias directory. It is the only
// state owned by this service; everything else is transient per dispatch.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS aliases (
    user_id    TEXT PRIMARY KEY,
    alias      TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// Open creates or opens the alias database at the given path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("alias: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("alias: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("alias: ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("alias: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory creates an in-memory store, used by tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("alias: open in-memory database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("alias: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Set stores or replaces a user's alias. The alias must not be empty and
// must not carry a leading mention trigger; the trigger is added at render
// time.
func (s *Store) Set(ctx context.Context, userID, alias string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if alias == "" {
		return fmt.Errorf("%w: alias is required", ErrValidation)
	}
	if strings.HasPrefix(alias, "@") {
		return fmt.Errorf("%w: do not include a leading @ in the alias", ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aliases (user_id, alias, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET alias = excluded.alias, updated_at = excluded.updated_at`,
		userID, alias)
	if err != nil {
		return fmt.Errorf("alias: set %s: %w", userID, err)
	}
	return nil
}

// Get returns the alias configured for a user.
func (s *Store) Get(ctx context.Context, userID string) (string, error) {
	var alias string
	err := s.db.QueryRowContext(ctx, `SELECT alias FROM aliases WHERE user_id = ?`, userID).Scan(&alias)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("alias: get %s: %w", userID, err)
	}
	return alias, nil
}

// Delete removes a user's alias. Deleting an unconfigured user is a no-op.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM aliases WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("alias: delete %s: %w", userID, err)
	}
	return nil
}

// Resolve maps user ids to configured aliases, preserving input order.
// Users without an alias are returned separately so callers can surface
// the gap; resolving them is side-effect free.
func (s *Store) Resolve(ctx context.Context, userIDs []string) (aliases, unconfigured []string, err error) {
	for _, id := range userIDs {
		alias, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			unconfigured = append(unconfigured, id)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		aliases = append(aliases, alias)
	}
	return aliases, unconfigured, nil
}
