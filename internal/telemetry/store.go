package telemetry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Store persists ingestion statistics in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the statistics database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open stats database %s: %w", path, err)
	}
	// WAL must be set via PRAGMA; DSN params may be ignored by the driver.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS object_counts (
		run_id INTEGER NOT NULL REFERENCES ingest_runs(id),
		class TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, class)
	);

	CREATE TABLE IF NOT EXISTS dropped_records (
		run_id INTEGER NOT NULL REFERENCES ingest_runs(id),
		reason TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, reason)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create stats schema: %w", err)
	}
	return nil
}

// RecordRun appends one pass outcome.
func (s *Store) RecordRun(stats *Stats) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`INSERT INTO ingest_runs (started_at, duration_ms) VALUES (?, ?)`,
		stats.StartedAt.UTC().Format(time.RFC3339Nano),
		stats.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	for class, count := range stats.Objects {
		if _, err := tx.Exec(
			`INSERT INTO object_counts (run_id, class, count) VALUES (?, ?, ?)`,
			runID, class, count,
		); err != nil {
			return fmt.Errorf("insert object count: %w", err)
		}
	}
	for reason, count := range stats.Dropped {
		if _, err := tx.Exec(
			`INSERT INTO dropped_records (run_id, reason, count) VALUES (?, ?, ?)`,
			runID, reason, count,
		); err != nil {
			return fmt.Errorf("insert dropped count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LastRun returns the most recent pass outcome, or nil when no pass has
// been recorded.
func (s *Store) LastRun() (*Stats, error) {
	var (
		runID      int64
		startedAt  string
		durationMS int64
	)
	err := s.db.QueryRow(
		`SELECT id, started_at, duration_ms FROM ingest_runs ORDER BY id DESC LIMIT 1`,
	).Scan(&runID, &startedAt, &durationMS)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}

	stats := &Stats{
		Duration: time.Duration(durationMS) * time.Millisecond,
		Objects:  make(map[string]int64),
		Dropped:  make(map[string]int64),
	}
	if ts, perr := time.Parse(time.RFC3339Nano, startedAt); perr == nil {
		stats.StartedAt = ts
	}

	if err := s.scanCounts(`SELECT class, count FROM object_counts WHERE run_id = ?`, runID, stats.Objects); err != nil {
		return nil, err
	}
	if err := s.scanCounts(`SELECT reason, count FROM dropped_records WHERE run_id = ?`, runID, stats.Dropped); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) scanCounts(query string, runID int64, into map[string]int64) error {
	rows, err := s.db.Query(query, runID)
	if err != nil {
		return fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scan count row: %w", err)
		}
		into[key] = count
	}
	return rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
