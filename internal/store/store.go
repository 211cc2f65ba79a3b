package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record or transcription state does not
// exist.
var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL CHECK (source IN ('recording', 'recording-chunk', 'upload')),
	created_at    INTEGER NOT NULL,
	parent_id     TEXT,
	chunk_number  INTEGER,
	sample_count  INTEGER NOT NULL DEFAULT 0,
	sample_rate   INTEGER NOT NULL DEFAULT 0,
	channels      INTEGER NOT NULL DEFAULT 1,
	size_bytes    INTEGER NOT NULL DEFAULT 0,
	duration_secs INTEGER NOT NULL DEFAULT 0,
	chunk_count   INTEGER NOT NULL DEFAULT 0,
	recovered     INTEGER NOT NULL DEFAULT 0,
	transcript    TEXT,
	variants      TEXT,
	hash          TEXT,
	format        TEXT,
	payload       BLOB
);
CREATE INDEX IF NOT EXISTS idx_records_source_created ON records(source, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_parent_chunk ON records(parent_id, chunk_number) WHERE parent_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS transcription_states (
	recording_id   TEXT PRIMARY KEY,
	last_completed INTEGER NOT NULL DEFAULT -1,
	segments       TEXT NOT NULL DEFAULT '[]',
	last_error     TEXT,
	failed_segment INTEGER,
	started_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);
`

// Store wraps the SQLite database holding all records.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the database location under the user data
// directory, honoring XDG_DATA_HOME.
func DefaultDBPath() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "tabtalk", "tabtalk.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "tabtalk", "tabtalk.db"), nil
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY between the writer goroutine and readers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
