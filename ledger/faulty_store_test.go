package ledger

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A broken database must never break in-memory tracking: store failures
// are logged and the session continues on the in-memory collection alone.
func TestStoreFailuresDoNotBlockTracking(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	// Hydration: stale pruning and loading both fail.
	mock.ExpectExec("DELETE FROM generation_jobs").WillReturnError(assert.AnError)
	mock.ExpectQuery("SELECT job_id").WillReturnError(assert.AnError)
	// StartGeneration persists, CompleteGeneration unpersists; both fail.
	mock.ExpectExec("INSERT INTO generation_jobs").WillReturnError(assert.AnError)
	mock.ExpectExec("DELETE FROM generation_jobs").WillReturnError(assert.AnError)

	l := New(NewStore(conn), nil, 0)

	l.StartGeneration("job-1", TypeWorkout)
	job := l.Job("job-1")
	require.NotNil(t, job, "write failure must not drop the in-memory job")
	assert.Equal(t, StatusGenerating, job.Status)

	l.CompleteGeneration("job-1", "plan-1")
	job = l.Job("job-1")
	require.NotNil(t, job)
	assert.Equal(t, StatusCompleted, job.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHydrateFailureYieldsEmptyLedger(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("DELETE FROM generation_jobs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT job_id").WillReturnError(assert.AnError)

	l := New(NewStore(conn), nil, 0)
	assert.Empty(t, l.Jobs())
}
