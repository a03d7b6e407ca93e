package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal implements Journal on a local SQLite file.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (or creates) the journal database at path.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return j, nil
}

// migrate creates the necessary tables
func (j *SQLiteJournal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		identity TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		iterations INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS iterations (
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		state TEXT NOT NULL,
		action TEXT,
		working_tokens INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, iteration),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_iterations_run_id ON iterations(run_id);
	`

	_, err := j.db.Exec(schema)
	return err
}

// SaveRun inserts or updates a run row.
func (j *SQLiteJournal) SaveRun(run *Run) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs (id, identity, status, started_at, completed_at, iterations, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Identity, run.Status, run.StartedAt, run.CompletedAt, run.Iterations, run.Error)

	return err
}

// GetRun retrieves one run by ID.
func (j *SQLiteJournal) GetRun(id string) (*Run, error) {
	row := j.db.QueryRow(`
		SELECT id, identity, status, started_at, completed_at, iterations, error
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

// ListRuns lists recent runs, newest first.
func (j *SQLiteJournal) ListRuns(limit int) ([]*Run, error) {
	rows, err := j.db.Query(`
		SELECT id, identity, status, started_at, completed_at, iterations, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordIteration appends one iteration row.
func (j *SQLiteJournal) RecordIteration(rec *IterationRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO iterations (run_id, iteration, state, action, working_tokens, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Iteration, rec.State, rec.Action, rec.WorkingTokens, rec.DurationMS, rec.CreatedAt)

	return err
}

// ListIterations lists a run's iterations in order.
func (j *SQLiteJournal) ListIterations(runID string, limit int) ([]*IterationRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, iteration, state, action, working_tokens, duration_ms, created_at
		FROM iterations
		WHERE run_id = ?
		ORDER BY iteration ASC
		LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*IterationRecord
	for rows.Next() {
		var rec IterationRecord
		var action sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.Iteration, &rec.State, &action,
			&rec.WorkingTokens, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Action = action.String
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// Close closes the underlying database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var completed sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(&run.ID, &run.Identity, &run.Status, &run.StartedAt,
		&completed, &run.Iterations, &errMsg); err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return &run, nil
}
