// Package prefs persists user listening preferences and artist discovery
// timestamps in SQLite.
package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"undergroundfm/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	user_id    TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sightings (
	artist     TEXT PRIMARY KEY,
	first_seen TIMESTAMP NOT NULL
);
`

// Store is the SQLite-backed preference and discovery-log store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (and if needed initializes) the store at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening preference store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing preference store: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Preferences returns the stored preferences for a user. Unknown users get
// the defaults, not an error.
func (s *Store) Preferences(ctx context.Context, userID string) (*core.UserPreferences, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM preferences WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DefaultPreferences(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}

	var prefs core.UserPreferences
	if err := json.Unmarshal([]byte(data), &prefs); err != nil {
		return nil, fmt.Errorf("decoding preferences: %w", err)
	}
	return &prefs, nil
}

// SavePreferences upserts a user's preferences.
func (s *Store) SavePreferences(ctx context.Context, userID string, prefs *core.UserPreferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userID, string(data), s.now().UTC())
	if err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}

	s.logger.Debug("preferences saved", zap.String("user", userID))
	return nil
}

// FirstSeen returns when an artist first appeared in any result batch,
// recording the current time on first sight. The timestamp never moves once
// written, so discovery scoring stays deterministic for equal inputs.
func (s *Store) FirstSeen(ctx context.Context, artist string) (time.Time, error) {
	key := strings.ToLower(strings.TrimSpace(artist))
	if key == "" {
		return time.Time{}, nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sightings (artist, first_seen) VALUES (?, ?)`,
		key, s.now().UTC())
	if err != nil {
		return time.Time{}, fmt.Errorf("recording sighting: %w", err)
	}

	var firstSeen time.Time
	err = s.db.QueryRowContext(ctx,
		`SELECT first_seen FROM sightings WHERE artist = ?`, key).Scan(&firstSeen)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading sighting: %w", err)
	}
	return firstSeen, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
