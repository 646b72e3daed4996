// Package localstore is the client's durable key/value storage. It plays the
// role browser local storage plays for the web client: a small set of string
// keys shared by every sx process running against the same config directory.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Keys owned by the session subsystem.
const (
	KeySignIn   = "sign-in"
	KeyFlags    = "flags"
	KeySettings = "settings"
)

// Rows are never deleted: Remove leaves a tombstone so watchers in other
// processes can see who removed the key.
const schema = `
CREATE TABLE IF NOT EXISTS local_storage (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT '',
    present INTEGER NOT NULL DEFAULT 1,
    origin TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL DEFAULT 1,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Store wraps the storage database. Each Store has its own origin id, which
// is stamped on every write it makes.
type Store struct {
	db     *sql.DB
	origin string
	owned  bool

	// mu orders writes against watcher snapshots so own-write counts always
	// match the versions a snapshot saw.
	mu  sync.Mutex
	own map[string]int64
}

// Open opens (creating if needed) the storage database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	conn.SetMaxOpenConns(1)

	// Readers in other processes must not block writers
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s, err := New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an existing connection and ensures the schema exists.
// The caller keeps ownership of db.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, origin: uuid.NewString(), own: map[string]int64{}}, nil
}

// Origin returns the id stamped on writes made through this Store.
func (s *Store) Origin() string {
	return s.origin
}

// Close closes the database if Open created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Get returns the value for key and whether it is set.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	var present bool
	err := s.db.QueryRow(
		`SELECT value, present FROM local_storage WHERE key = ?`, key,
	).Scan(&value, &present)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	if !present {
		return "", false, nil
	}
	return value, true, nil
}

// Set stores value under key.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO local_storage (key, value, present, origin, version, updated_at)
		 VALUES (?, ?, 1, ?, 1, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   present = 1,
		   origin = excluded.origin,
		   version = local_storage.version + 1,
		   updated_at = CURRENT_TIMESTAMP`,
		key, value, s.origin,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.own[key]++
	return nil
}

// Remove unsets key. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`UPDATE local_storage
		 SET value = '', present = 0, origin = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE key = ? AND present = 1`,
		s.origin, key,
	)
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.own[key] += n
	}
	return nil
}

// Event describes a change to a watched key made by another Store.
type Event struct {
	Key      string
	OldValue string
	NewValue string
	Present  bool
	Origin   string
}

type entry struct {
	value   string
	present bool
	origin  string
	version int64
	// own is how many writes s had made to the key when the row was read.
	own int64
}

// Watch polls the watched keys every interval and emits an Event for each
// change written by a different origin. A key is reported when its version
// moved by more than the writes s made in between, so a foreign write
// followed by a write through s is still seen. Writes made only through s
// are not reported. The channel is closed when ctx is done.
func (s *Store) Watch(ctx context.Context, interval time.Duration, keys ...string) <-chan Event {
	out := make(chan Event, 16)

	last, err := s.snapshot(keys)
	if err != nil {
		slog.Debug("localstore: initial snapshot", "err", err)
		last = map[string]entry{}
	}

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			cur, err := s.snapshot(keys)
			if err != nil {
				slog.Debug("localstore: poll", "err", err)
				continue
			}

			for _, key := range keys {
				prev := last[key]
				next := cur[key]
				if next.version-prev.version <= next.own-prev.own {
					continue
				}
				ev := Event{
					Key:      key,
					OldValue: prev.value,
					NewValue: next.value,
					Present:  next.present,
					Origin:   next.origin,
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			last = cur
		}
	}()

	return out
}

func (s *Store) snapshot(keys []string) (map[string]entry, error) {
	result := make(map[string]entry, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		result[k] = entry{own: s.own[k]}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.Query(
		`SELECT key, value, present, origin, version FROM local_storage WHERE key IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		e := entry{}
		if err := rows.Scan(&key, &e.value, &e.present, &e.origin, &e.version); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		e.own = result[key].own
		result[key] = e
	}
	return result, rows.Err()
}
