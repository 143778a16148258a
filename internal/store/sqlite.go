package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/vidrestore/internal/model"

	_ "modernc.org/sqlite"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
    id               TEXT PRIMARY KEY,
    status           TEXT NOT NULL,
    message          TEXT NOT NULL,
    input_name       TEXT NOT NULL,
    output_ref       TEXT NOT NULL,
    duration_seconds REAL,
    variant          TEXT NOT NULL,
    params           TEXT NOT NULL,
    created_at       DATETIME NOT NULL,
    started_at       DATETIME,
    finished_at      DATETIME
)`

const createJobLogsTable = `
CREATE TABLE IF NOT EXISTS job_logs (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id     TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    line       TEXT NOT NULL,
    created_at DATETIME NOT NULL
)`

const createJobLogsIndex = `CREATE INDEX IF NOT EXISTS idx_job_logs_job_id ON job_logs (job_id, seq)`

const jobColumns = `id, status, message, input_name, output_ref, duration_seconds,
	params, created_at, started_at, finished_at`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite. It is intended for ":memory:"
// databases or scratch files; nothing is recovered on restart.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes
	// read-modify-write transactions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createJobsTable, createJobLogsTable, createJobLogsIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	j := &model.Job{}
	var params string
	if err := row.Scan(
		&j.ID, &j.Status, &j.Message, &j.InputName, &j.OutputRef, &j.DurationSeconds,
		&params, &j.CreatedAt, &j.StartedAt, &j.FinishedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &j.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	return j, nil
}

// CreateJob inserts a new job record.
func (s *SQLiteStore) CreateJob(ctx context.Context, j *model.Job) error {
	if err := j.CheckInvariants(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvariant, err)
	}
	params, err := json.Marshal(j.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs WHERE id = ?", j.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check job: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrExists, j.ID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobs (
			id, status, message, input_name, output_ref, duration_seconds,
			variant, params, created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Status, j.Message, j.InputName, j.OutputRef, j.DurationSeconds,
		j.Params.Variant, string(params), j.CreatedAt, j.StartedAt, j.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return tx.Commit()
}

// GetJob retrieves a job by ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ListJobs returns all jobs ordered by created_at DESC.
func (s *SQLiteStore) ListJobs(ctx context.Context) ([]*model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// UpdateJob applies fn inside a transaction.
func (s *SQLiteStore) UpdateJob(ctx context.Context, id string, fn Mutator) (*model.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := scanJob(tx.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	next, err := applyMutator(current, fn)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, message = ?, input_name = ?, output_ref = ?,
			duration_seconds = ?, started_at = ?, finished_at = ?
		WHERE id = ?`,
		next.Status, next.Message, next.InputName, next.OutputRef,
		next.DurationSeconds, next.StartedAt, next.FinishedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// DeleteJob removes the job and its log lines inside one transaction.
func (s *SQLiteStore) DeleteJob(ctx context.Context, id string) (*model.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	j, err := scanJob(tx.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("delete job: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM job_logs WHERE job_id = ?", id); err != nil {
		return nil, fmt.Errorf("delete job logs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return j, nil
}

// GetJobStats aggregates counts by status and variant.
func (s *SQLiteStore) GetJobStats(ctx context.Context) (*JobStats, error) {
	stats := &JobStats{
		CountByStatus:  make(map[string]int),
		CountByVariant: make(map[string]int),
	}

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(duration_seconds) FROM jobs").Scan(&stats.Total, &avg)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationSeconds = avg.Float64
	}

	if err := s.countBy(ctx, "status", stats.CountByStatus); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "variant", stats.CountByVariant); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *SQLiteStore) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM jobs GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}

// InsertLogLine appends a progress line for an existing job.
func (s *SQLiteStore) InsertLogLine(ctx context.Context, jobID string, seq int, line string) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO job_logs (job_id, seq, line, created_at)
		SELECT ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM jobs WHERE id = ?)`,
		jobID, seq, line, time.Now().UTC(), jobID,
	)
	if err != nil {
		return fmt.Errorf("insert log line: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetLogLines returns the job's log lines ordered by sequence number.
func (s *SQLiteStore) GetLogLines(ctx context.Context, jobID string) ([]model.LogLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, seq, line, created_at FROM job_logs
		WHERE job_id = ? ORDER BY seq ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("get log lines: %w", err)
	}
	defer rows.Close()

	lines := []model.LogLine{}
	for rows.Next() {
		var l model.LogLine
		if err := rows.Scan(&l.ID, &l.JobID, &l.Seq, &l.Line, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log lines: %w", err)
	}
	return lines, nil
}
