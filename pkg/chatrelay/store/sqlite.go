package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackup gives the dedupe cache optional durability across process
// restarts, grounded on the teacher's pkg/devclaw/database/backends.
// OpenSQLite (same DSN/WAL/busy-timeout shape), repurposed from a general
// database backend to a single seen-keys table. The stores remain
// memory-only by default (spec.md §1 Non-goals: no persistence across
// restarts is required); this is opt-in when CHATRELAY_STATE_DB is set.
type SQLiteBackup struct {
	db *sql.DB
}

// OpenSQLiteBackup opens (creating if needed) a WAL-mode SQLite database at
// path and ensures the seen_keys table exists.
func OpenSQLiteBackup(path string) (*SQLiteBackup, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create state db directory %q: %w", dir, err)
		}
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open state db %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping state db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS seen_keys (
		key TEXT PRIMARY KEY,
		expires_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate state db: %w", err)
	}
	return &SQLiteBackup{db: db}, nil
}

func (b *SQLiteBackup) Close() error { return b.db.Close() }

// Record persists key's expiry so a restarted process can rehydrate it via
// Load before the in-memory DedupeCache would otherwise treat it as new.
func (b *SQLiteBackup) Record(key string, expiresAt time.Time) error {
	_, err := b.db.Exec(
		`INSERT INTO seen_keys(key, expires_at) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET expires_at=excluded.expires_at`,
		key, expiresAt.Unix(),
	)
	return err
}

// Load returns every still-unexpired key with its expiry, for seeding a
// freshly started DedupeCache.
func (b *SQLiteBackup) Load(now time.Time) (map[string]time.Time, error) {
	rows, err := b.db.Query(`SELECT key, expires_at FROM seen_keys WHERE expires_at > ?`, now.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var key string
		var exp int64
		if err := rows.Scan(&key, &exp); err != nil {
			return nil, err
		}
		out[key] = time.Unix(exp, 0)
	}
	return out, rows.Err()
}

// Prune deletes every row whose expiry has already passed.
func (b *SQLiteBackup) Prune(now time.Time) error {
	_, err := b.db.Exec(`DELETE FROM seen_keys WHERE expires_at <= ?`, now.Unix())
	return err
}
