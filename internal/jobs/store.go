package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrJobNotFound means no job exists under the given id.
	ErrJobNotFound = errors.New("processing job not found")
	// ErrInvalidTransition means a status update would regress the state
	// machine or leave a terminal state.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

const schema = `
CREATE TABLE IF NOT EXISTS processing_jobs (
	id             TEXT PRIMARY KEY,
	exam_id        TEXT NOT NULL,
	image_path     TEXT NOT NULL,
	form_type      TEXT NOT NULL,
	status         TEXT NOT NULL,
	student_number TEXT NOT NULL DEFAULT '',
	confidence     REAL NOT NULL DEFAULT 0,
	raw_data       BLOB,
	error_message  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_processing_jobs_status ON processing_jobs(status);
`

// Store persists job records in SQLite. Status transitions are applied with
// guarded updates so concurrent writers can never regress a job.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if necessary) the job database at path.
// Use ":memory:" for an ephemeral store in tests.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening job store: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying job store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Create inserts a new PENDING job record.
func (s *Store) Create(ctx context.Context, j *Job) error {
	now := time.Now().UTC()
	j.Status = StatusPending
	j.CreatedAt = now
	j.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_jobs
			(id, exam_id, image_path, form_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.ExamID, j.ImagePath, j.FormType, j.Status, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating job %s: %w", j.ID, err)
	}
	return nil
}

// Get returns the job with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, exam_id, image_path, form_type, status,
		       student_number, confidence, raw_data, error_message,
		       created_at, updated_at
		FROM processing_jobs WHERE id = ?`, id)

	var j Job
	err := row.Scan(&j.ID, &j.ExamID, &j.ImagePath, &j.FormType, &j.Status,
		&j.StudentNumber, &j.Confidence, &j.RawData, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	return &j, nil
}

// Update carries the optional fields written alongside a transition.
type Update struct {
	StudentNumber string
	Confidence    float64
	RawData       []byte
	ErrorMessage  string
}

// Transition moves a job from one status to another, atomically. The update
// only applies while the job is still in the from status; anything else
// reports ErrInvalidTransition (or ErrJobNotFound for unknown ids).
func (s *Store) Transition(ctx context.Context, id string, from, to Status, u Update) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET status = ?, student_number = ?, confidence = ?, raw_data = ?,
		    error_message = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		to, u.StudentNumber, u.Confidence, u.RawData, u.ErrorMessage,
		time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("transitioning job %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transitioning job %s: %w", id, err)
	}
	if n == 0 {
		// Distinguish an unknown job from a lost transition race.
		if _, gerr := s.Get(ctx, id); gerr != nil {
			return gerr
		}
		return fmt.Errorf("%w: job %s is no longer %s", ErrInvalidTransition, id, from)
	}
	return nil
}

// CountByStatus returns the number of jobs per status, for metrics and
// operational checks.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM processing_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[Status]int)
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("counting jobs: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}
