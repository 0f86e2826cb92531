// Package sqlite is the default Store backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	engineerrors "sentinel-engine-go/internal/errors"
)

// Timestamps are stored as fixed-width UTC text so that string comparison
// and ordering match time ordering.
const timeLayout = "2006-01-02 15:04:05.000000"

// DB wraps the SQLite connection. SQLite allows a single writer, so writes
// take the exclusive lock and reads the shared one.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New opens (creating if needed) the database at dbPath and migrates it.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS detection_events (
	id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	camera_id TEXT NOT NULL,
	track_id TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	detection_data TEXT,
	snapshot_path TEXT,
	video_clip_path TEXT,
	processed INTEGER NOT NULL DEFAULT 0,
	person_count INTEGER NOT NULL DEFAULT 1,
	x REAL,
	y REAL
);

CREATE TABLE IF NOT EXISTS alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	alert_type TEXT NOT NULL,
	severity INTEGER NOT NULL,
	camera_id TEXT NOT NULL DEFAULT '',
	zone_id TEXT,
	track_id TEXT NOT NULL,
	description TEXT,
	snapshot_path TEXT,
	video_clip_path TEXT,
	acknowledged INTEGER NOT NULL DEFAULT 0,
	acknowledged_by TEXT,
	acknowledged_at TEXT,
	suspect_id TEXT,
	similarity REAL
);

CREATE TABLE IF NOT EXISTS hourly_footfall (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	camera_id TEXT NOT NULL,
	timestamp_hour TEXT NOT NULL,
	unique_person_count INTEGER NOT NULL DEFAULT 0,
	UNIQUE (camera_id, timestamp_hour)
);

CREATE TABLE IF NOT EXISTS hourly_demographics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	camera_id TEXT NOT NULL,
	timestamp_hour TEXT NOT NULL,
	demographics_data TEXT NOT NULL DEFAULT '{}',
	UNIQUE (camera_id, timestamp_hour)
);

CREATE TABLE IF NOT EXISTS track_visits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	camera_id TEXT NOT NULL,
	track_id TEXT NOT NULL,
	zone_id TEXT NOT NULL,
	entered_at TEXT NOT NULL,
	exited_at TEXT NOT NULL,
	dwell_seconds REAL NOT NULL DEFAULT 0,
	UNIQUE (camera_id, track_id, zone_id, entered_at)
);

CREATE TABLE IF NOT EXISTS suspect_sightings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	suspect_id TEXT NOT NULL,
	camera_id TEXT NOT NULL,
	track_id TEXT NOT NULL,
	zone_id TEXT,
	timestamp TEXT NOT NULL,
	x REAL,
	y REAL,
	confidence REAL NOT NULL DEFAULT 0,
	similarity REAL NOT NULL DEFAULT 0,
	snapshot_path TEXT
);

CREATE INDEX IF NOT EXISTS idx_detection_events_timestamp ON detection_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_detection_events_camera ON detection_events(camera_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp);
CREATE INDEX IF NOT EXISTS idx_alerts_type ON alerts(alert_type);
CREATE INDEX IF NOT EXISTS idx_alerts_acknowledged ON alerts(acknowledged);
CREATE INDEX IF NOT EXISTS idx_track_visits_camera ON track_visits(camera_id, entered_at);
CREATE INDEX IF NOT EXISTS idx_alerts_suspect ON alerts(suspect_id);
CREATE INDEX IF NOT EXISTS idx_suspect_sightings_suspect ON suspect_sightings(suspect_id, timestamp);
`

// Migrate creates missing tables and indexes. It is safe to run repeatedly.
func (db *DB) Migrate(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.ExecContext(ctx, schema)
	return err
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return persistenceError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistenceError("failed to commit transaction", err)
	}
	return nil
}

func persistenceError(msg string, err error) error {
	return engineerrors.Wrap(engineerrors.ErrCategoryStorage, engineerrors.CodePersistenceFailure, msg, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
