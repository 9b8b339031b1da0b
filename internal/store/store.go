package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrStore wraps every database failure returned by the store.
	ErrStore = errors.New("store: database error")

	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")
)

// SessionWindow is how long after its start a session keeps absorbing pings
// from the same agent.
const SessionWindow = time.Hour

// Store is the SQLite telemetry layer: spokes, sessions and pings.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger

	// mu serializes find-or-create-session so two concurrent pings from one
	// agent never open two sessions.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for pings without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrStore, err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", ErrStore, err)
	}
	s := &Store{db: db, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("%w: migrate: %w", ErrStore, err)
	}
	return nil
}

// Timestamps are stored as Unix milliseconds.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS spokes (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  name            TEXT NOT NULL,
  root_path       TEXT NOT NULL UNIQUE,
  git_url         TEXT
);

CREATE TABLE IF NOT EXISTS sessions (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  spoke_id        INTEGER NOT NULL REFERENCES spokes(id),
  agent_id        TEXT NOT NULL,
  start_timestamp INTEGER NOT NULL,
  end_timestamp   INTEGER,
  total_pings     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pings (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id      INTEGER NOT NULL REFERENCES sessions(id),
  agent_id        TEXT NOT NULL,
  action          TEXT NOT NULL,
  target_path     TEXT NOT NULL,
  timestamp       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pings_session ON pings(session_id);
CREATE INDEX IF NOT EXISTS idx_pings_path ON pings(target_path);
CREATE INDEX IF NOT EXISTS idx_sessions_spoke ON sessions(spoke_id);
CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent_id, spoke_id, start_timestamp);
`

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
