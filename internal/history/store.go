// Package history persists workflow run results in a SQLite database and
// answers queries for the history command.
package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/runci/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// RunRecord represents a single stored workflow run
type RunRecord struct {
	ID           int64
	RunID        string
	Workflow     string
	WorkflowFile string
	EventKind    string
	EventBranch  string
	TotalJobs    int
	Succeeded    int
	Failed       int
	Skipped      int
	Duration     time.Duration
	StartedAt    time.Time
}

// JobRecord represents a stored job result belonging to a run
type JobRecord struct {
	ID       int64
	RunID    string
	JobID    string
	Status   string
	Duration time.Duration
	Error    string
	Output   string
}

// Store manages the SQLite database for run history
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	// Handle in-memory database
	if dbPath == ":memory:" {
		return openAndInitStore(dbPath)
	}

	// Ensure parent directory exists for file-based databases
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	return openAndInitStore(dbPath)
}

// openAndInitStore opens the database connection and initializes the schema
func openAndInitStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure SQLite for concurrent access with retry logic.
	// busy_timeout must come first so subsequent operations wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on
// lock errors, which can occur during concurrent initialization of the
// same database file.
func execWithRetry(db *sql.DB, query string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(query)
		if err == nil {
			return nil
		}

		// Only retry on "database is locked" errors
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}

		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun stores a run result and its job results in one transaction
func (s *Store) RecordRun(result *models.RunResult, workflowFile string) error {
	if result == nil {
		return fmt.Errorf("run result is nil")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	eventKind, eventBranch := "", ""
	if result.Event != nil {
		eventKind = result.Event.Kind
		eventBranch = result.Event.Branch
	}

	_, err = tx.Exec(`
		INSERT INTO runs (run_id, workflow, workflow_file, event_kind, event_branch,
			total_jobs, succeeded, failed, skipped, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.Workflow, workflowFile, eventKind, eventBranch,
		result.TotalJobs, result.Succeeded, result.Failed, result.Skipped,
		result.Duration.Milliseconds(), result.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, job := range result.JobResults {
		errMsg := ""
		if job.Error != nil {
			errMsg = job.Error.Error()
		}

		// Persist only failing step output; green output is in the log file
		var output strings.Builder
		for _, step := range job.Steps {
			if step.Status != models.StatusSuccess && step.Output != "" {
				output.WriteString(step.Output)
			}
		}

		_, err = tx.Exec(`
			INSERT INTO job_results (run_id, job_id, status, duration_ms, error, output)
			VALUES (?, ?, ?, ?, ?, ?)`,
			result.RunID, job.Job.ID, job.Status, job.Duration.Milliseconds(),
			errMsg, output.String())
		if err != nil {
			return fmt.Errorf("insert job result for %s: %w", job.Job.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
// A limit of 0 returns all runs.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	query := `
		SELECT id, run_id, workflow, workflow_file, event_kind, event_branch,
			total_jobs, succeeded, failed, skipped, duration_ms, started_at
		FROM runs ORDER BY started_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.Workflow, &r.WorkflowFile,
			&r.EventKind, &r.EventBranch, &r.TotalJobs, &r.Succeeded,
			&r.Failed, &r.Skipped, &durationMs, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRunRecord reads one runs row into a RunRecord
func scanRunRecord(row rowScanner) (RunRecord, error) {
	var r RunRecord
	var durationMs int64
	err := row.Scan(&r.ID, &r.RunID, &r.Workflow, &r.WorkflowFile,
		&r.EventKind, &r.EventBranch, &r.TotalJobs, &r.Succeeded,
		&r.Failed, &r.Skipped, &durationMs, &r.StartedAt)
	if err != nil {
		return r, err
	}
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return r, nil
}

// GetRun returns a single run and its job results.
// The run may be addressed by full run_id or by a unique prefix; a
// prefix matching more than one run is an error, never a silent pick.
func (s *Store) GetRun(runID string) (*RunRecord, []JobRecord, error) {
	const selectRun = `
		SELECT id, run_id, workflow, workflow_file, event_kind, event_branch,
			total_jobs, succeeded, failed, skipped, duration_ms, started_at
		FROM runs`

	// An exact match always wins, even when the same string is also a
	// prefix of other run IDs
	r, err := scanRunRecord(s.db.QueryRow(selectRun+" WHERE run_id = ?", runID))
	if err == sql.ErrNoRows {
		rows, qErr := s.db.Query(selectRun+" WHERE run_id LIKE ? LIMIT 2", runID+"%")
		if qErr != nil {
			return nil, nil, fmt.Errorf("query run: %w", qErr)
		}
		defer rows.Close()

		var matches []RunRecord
		for rows.Next() {
			m, sErr := scanRunRecord(rows)
			if sErr != nil {
				return nil, nil, fmt.Errorf("scan run: %w", sErr)
			}
			matches = append(matches, m)
		}
		if rErr := rows.Err(); rErr != nil {
			return nil, nil, fmt.Errorf("query run: %w", rErr)
		}

		switch len(matches) {
		case 0:
			return nil, nil, fmt.Errorf("run %q not found", runID)
		case 1:
			r = matches[0]
		default:
			return nil, nil, fmt.Errorf("run id prefix %q is ambiguous", runID)
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("query run: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT id, run_id, job_id, status, duration_ms, error, output
		FROM job_results WHERE run_id = ? ORDER BY id`, r.RunID)
	if err != nil {
		return nil, nil, fmt.Errorf("query job results: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var j JobRecord
		var jobDurationMs int64
		if err := rows.Scan(&j.ID, &j.RunID, &j.JobID, &j.Status,
			&jobDurationMs, &j.Error, &j.Output); err != nil {
			return nil, nil, fmt.Errorf("scan job result: %w", err)
		}
		j.Duration = time.Duration(jobDurationMs) * time.Millisecond
		jobs = append(jobs, j)
	}
	return &r, jobs, rows.Err()
}

// Clear deletes all stored runs and job results
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM job_results"); err != nil {
		return fmt.Errorf("clear job results: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM runs"); err != nil {
		return fmt.Errorf("clear runs: %w", err)
	}
	return nil
}

// Prune applies the retention policy: runs older than keepDays are
// deleted, and only the newest maxRuns runs are kept. Zero disables the
// corresponding limit. Returns the number of runs deleted.
func (s *Store) Prune(keepDays, maxRuns int) (int64, error) {
	var deleted int64

	if keepDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -keepDays)
		res, err := s.db.Exec(`
			DELETE FROM runs WHERE started_at < ?`, cutoff)
		if err != nil {
			return deleted, fmt.Errorf("prune by age: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted += n
		}
	}

	if maxRuns > 0 {
		res, err := s.db.Exec(`
			DELETE FROM runs WHERE id NOT IN (
				SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
			)`, maxRuns)
		if err != nil {
			return deleted, fmt.Errorf("prune by count: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted += n
		}
	}

	// Remove job results orphaned by either prune pass
	if deleted > 0 {
		if _, err := s.db.Exec(`
			DELETE FROM job_results WHERE run_id NOT IN (SELECT run_id FROM runs)`); err != nil {
			return deleted, fmt.Errorf("prune job results: %w", err)
		}
	}

	return deleted, nil
}
