package ledger

import (
	"database/sql"
	"time"

	"github.com/quanluon/gitgafit-web-sub000/errors"
)

// Store persists the ledger's projection of in-flight jobs.
//
// Only GENERATING jobs are ever written: terminal jobs exist just long
// enough to alert the user and must not reappear after a restart.
type Store struct {
	db *sql.DB
}

// NewStore creates a new job projection store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertJob inserts or updates an in-flight job row.
func (s *Store) UpsertJob(job *Job) error {
	query := `
		INSERT INTO generation_jobs (job_id, type, progress, message, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			type = excluded.type,
			progress = excluded.progress,
			message = excluded.message,
			started_at = excluded.started_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.Exec(query,
		job.ID,
		job.Type,
		job.Progress,
		job.Message,
		job.StartedAt,
		time.Now(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert job")
	}
	return nil
}

// DeleteJob removes a job row. Deleting an absent row is not an error.
func (s *Store) DeleteJob(jobID string) error {
	_, err := s.db.Exec(`DELETE FROM generation_jobs WHERE job_id = ?`, jobID)
	if err != nil {
		return errors.Wrap(err, "failed to delete job")
	}
	return nil
}

// ListJobs returns all persisted in-flight jobs, oldest first.
func (s *Store) ListJobs() ([]*Job, error) {
	rows, err := s.db.Query(`
		SELECT job_id, type, progress, message, started_at
		FROM generation_jobs
		ORDER BY started_at ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job := &Job{Status: StatusGenerating}
		if err := rows.Scan(&job.ID, &job.Type, &job.Progress, &job.Message, &job.StartedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating jobs")
	}

	return jobs, nil
}

// DeleteStale removes jobs started before the retention cutoff and returns
// the number of rows pruned. This is the only backstop for jobs that never
// received a terminal event.
func (s *Store) DeleteStale(retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)

	result, err := s.db.Exec(`DELETE FROM generation_jobs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete stale jobs")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(rows), nil
}

// ActiveCount returns the number of persisted in-flight jobs.
func (s *Store) ActiveCount() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM generation_jobs`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count jobs")
	}
	return count, nil
}
