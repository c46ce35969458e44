// Package store provides the on-device durable key/value layer for the
// sync engine.
//
// Records are kept in an embedded SQLite database opened in WAL mode so the
// engine's readers never block its writers. Each record is one serialized
// JSON value addressed by (kind, id); the pending-operation queue and the
// stored session live in reserved kinds alongside the domain entities.
//
// Store operations are synchronous and either commit fully or fail with a
// hard error. There is no retry layer here: a serialization or storage
// fault is unrecoverable locally and is surfaced to the caller as-is.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stillapp/stillsync/internal/schema"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned by Load when no record exists for (kind, id).
var ErrNotFound = errors.New("record not found")

// Store wraps the SQLite connection holding all locally persisted records.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the store database at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If it doesn't exist it is created along with the schema.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(filepath.Join(stateDir, "stillsync.db"))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	// WAL mode for concurrent reads during writes.
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates the records table if it doesn't exist.
func (s *Store) initSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS records (
    kind       TEXT NOT NULL,
    id         TEXT NOT NULL,
    data       BLOB NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS idx_records_kind_updated ON records(kind, updated_at);
`
	if _, err := s.conn.Exec(ddl); err != nil {
		return fmt.Errorf("failed to initialize store schema: %w", err)
	}
	return nil
}

// Save serializes v and commits it under (kind, id), replacing any
// previous record. The write is durable before Save returns.
func (s *Store) Save(kind schema.Kind, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", kind, id, err)
	}

	_, err = s.conn.Exec(`
INSERT INTO records (kind, id, data, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(kind, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(kind), id, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", kind, id, err)
	}
	return nil
}

// Load reads the record at (kind, id) into out. Returns ErrNotFound if no
// record exists.
func (s *Store) Load(kind schema.Kind, id string, out any) error {
	var data []byte
	err := s.conn.QueryRow(
		`SELECT data FROM records WHERE kind = ? AND id = ?`,
		string(kind), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load %s/%s: %w", kind, id, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", kind, id, err)
	}
	return nil
}

// LoadAll reads every record of the given kind, oldest write first, and
// decodes the set into out, which must be a pointer to a slice.
func (s *Store) LoadAll(kind schema.Kind, out any) error {
	rows, err := s.conn.Query(
		`SELECT data FROM records WHERE kind = ? ORDER BY updated_at, id`,
		string(kind))
	if err != nil {
		return fmt.Errorf("failed to query %s records: %w", kind, err)
	}
	defer rows.Close()

	// Build a JSON array from the stored documents so the caller's slice
	// type drives decoding.
	var docs []json.RawMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("failed to scan %s record: %w", kind, err)
		}
		docs = append(docs, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate %s records: %w", kind, err)
	}

	arr, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to assemble %s records: %w", kind, err)
	}
	if err := json.Unmarshal(arr, out); err != nil {
		return fmt.Errorf("failed to decode %s records: %w", kind, err)
	}
	return nil
}

// Record pairs an id with its value for bulk writes.
type Record struct {
	ID string
	V  any
}

// ReplaceAll atomically replaces every record of the given kind with the
// provided set, preserving the slice order for later LoadAll calls.
func (s *Store) ReplaceAll(kind schema.Kind, records []Record) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin %s replace: %w", kind, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM records WHERE kind = ?`, string(kind)); err != nil {
		return fmt.Errorf("failed to clear %s records: %w", kind, err)
	}

	base := time.Now().UTC()
	for i, rec := range records {
		data, err := json.Marshal(rec.V)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", kind, rec.ID, err)
		}
		// Strictly increasing timestamps keep LoadAll in slice order.
		ts := base.Add(time.Duration(i) * time.Microsecond).Format(time.RFC3339Nano)
		if _, err := tx.Exec(
			`INSERT INTO records (kind, id, data, updated_at) VALUES (?, ?, ?, ?)`,
			string(kind), rec.ID, data, ts); err != nil {
			return fmt.Errorf("failed to insert %s/%s: %w", kind, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s replace: %w", kind, err)
	}
	return nil
}

// Delete removes the record at (kind, id). Deleting a record that doesn't
// exist is not an error (idempotent).
func (s *Store) Delete(kind schema.Kind, id string) error {
	if _, err := s.conn.Exec(
		`DELETE FROM records WHERE kind = ? AND id = ?`,
		string(kind), id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", kind, id, err)
	}
	return nil
}

// Count returns the number of records of the given kind.
func (s *Store) Count(kind schema.Kind) (int, error) {
	var n int
	if err := s.conn.QueryRow(
		`SELECT COUNT(*) FROM records WHERE kind = ?`,
		string(kind)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", kind, err)
	}
	return n, nil
}

// Close closes the database connection. Performs a WAL checkpoint to
// ensure all changes are persisted.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	// A failed checkpoint is not fatal; the WAL replays on next open.
	_, _ = s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	s.conn = nil
	return nil
}
