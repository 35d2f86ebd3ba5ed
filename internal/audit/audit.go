// Package audit records administrative actions taken against a Store (drop
// collection, truncate collection) to a SQL database, independent of
// event storage itself. Adapted from the teacher's internal/db package: the
// dual SQLite/PostgreSQL driver detection and migration style survive
// verbatim, narrowed to just the audit_log concern — the bridge-specific
// objects/follows/actor_keys/kv tables and their accessors have no
// analogue in this domain and are not carried forward.
package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Log wraps a database connection dedicated to the admin audit trail.
type Log struct {
	db     *sql.DB
	driver string
}

// Open opens a database connection for the audit log. The URL can be:
//   - A file path like "audit.db" → SQLite
//   - "sqlite:///path/to/file.db" → SQLite
//   - "postgres://..." → PostgreSQL
func Open(databaseURL string) (*Log, error) {
	driver, dsn := detectDriver(databaseURL)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping audit db: %w", err)
	}

	if driver == "sqlite" {
		const sqliteMaxConns = 4
		db.SetMaxOpenConns(sqliteMaxConns)
		db.SetMaxIdleConns(sqliteMaxConns)

		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA synchronous=NORMAL",
		} {
			if _, err := db.Exec(pragma); err != nil {
				return nil, fmt.Errorf("sqlite pragma (%s): %w", pragma, err)
			}
		}
	}

	l := &Log{db: db, driver: driver}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

const createAuditLog = `CREATE TABLE IF NOT EXISTS audit_log (
	ts     TEXT NOT NULL,
	action TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
)`

const createAuditLogIndex = `CREATE INDEX IF NOT EXISTS audit_log_ts ON audit_log(ts)`

func (l *Log) migrate() error {
	for _, stmt := range []string{createAuditLog, createAuditLogIndex} {
		if _, err := l.db.Exec(stmt); err != nil {
			if l.driver == "postgres" && strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("audit migration failed: %w\nSQL: %s", err, stmt)
		}
	}
	slog.Debug("audit log migrations complete")
	return nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

// Entry is one record in the admin audit log.
type Entry struct {
	Timestamp string `json:"ts"`
	Action    string `json:"action"`
	Detail    string `json:"detail"`
}

// Record appends a new entry timestamped now, in UTC RFC 3339 form with a
// fixed nine-digit fraction so both SQLite and PostgreSQL sort it correctly
// by plain string ordering.
// Best-effort: a caller should log but not fail the admin action itself on
// a Record error.
func (l *Log) Record(action, detail string) error {
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
	q := `INSERT INTO audit_log (ts, action, detail) VALUES (?, ?, ?)`
	if l.driver == "postgres" {
		q = `INSERT INTO audit_log (ts, action, detail) VALUES ($1, $2, $3)`
	}
	_, err := l.db.Exec(q, ts, action, detail)
	return err
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(limit int) ([]Entry, error) {
	q := `SELECT ts, action, detail FROM audit_log ORDER BY ts DESC LIMIT ?`
	if l.driver == "postgres" {
		q = `SELECT ts, action, detail FROM audit_log ORDER BY ts DESC LIMIT $1`
	}
	rows, err := l.db.Query(q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Timestamp, &e.Action, &e.Detail); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func detectDriver(u string) (driver, dsn string) {
	if strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://") {
		return "postgres", u
	}
	if strings.HasPrefix(u, "sqlite://") {
		return "sqlite", strings.TrimPrefix(u, "sqlite://")
	}
	return "sqlite", u
}
