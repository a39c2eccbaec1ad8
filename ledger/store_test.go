package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gftest "github.com/quanluon/gitgafit-web-sub000/internal/testing"
)

func TestStoreUpsertAndList(t *testing.T) {
	store := NewStore(gftest.CreateTestDB(t))

	job := NewJob("gen-store-1", TypeWorkout)
	require.NoError(t, store.UpsertJob(job))

	// Upsert again with new progress: same row, updated fields
	job.Progress = 55
	job.Message = "Halfway"
	require.NoError(t, store.UpsertJob(job))

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 55, jobs[0].Progress)
	assert.Equal(t, "Halfway", jobs[0].Message)
	assert.Equal(t, StatusGenerating, jobs[0].Status)
}

func TestStoreDeleteIdempotent(t *testing.T) {
	store := NewStore(gftest.CreateTestDB(t))

	require.NoError(t, store.UpsertJob(NewJob("gen-store-2", TypeMeal)))
	require.NoError(t, store.DeleteJob("gen-store-2"))
	require.NoError(t, store.DeleteJob("gen-store-2"), "deleting an absent row is not an error")

	count, err := store.ActiveCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStoreDeleteStale(t *testing.T) {
	store := NewStore(gftest.CreateTestDB(t))

	old := NewJob("old", TypeInbody)
	old.StartedAt = time.Now().Add(-25 * time.Hour)
	require.NoError(t, store.UpsertJob(old))

	recent := NewJob("recent", TypeBodyPhoto)
	recent.StartedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.UpsertJob(recent))

	pruned, err := store.DeleteStale(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "recent", jobs[0].ID)
}

func TestStoreListOrderedByStart(t *testing.T) {
	store := NewStore(gftest.CreateTestDB(t))

	second := NewJob("second", TypeMeal)
	second.StartedAt = time.Now()
	first := NewJob("first", TypeWorkout)
	first.StartedAt = time.Now().Add(-time.Minute)

	require.NoError(t, store.UpsertJob(second))
	require.NoError(t, store.UpsertJob(first))

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "first", jobs[0].ID)
	assert.Equal(t, "second", jobs[1].ID)
}

func TestStoreUpsertRefreshesStartedAt(t *testing.T) {
	store := NewStore(gftest.CreateTestDB(t))

	old := NewJob("gen-store-5", TypeWorkout)
	old.StartedAt = time.Now().Add(-23 * time.Hour)
	require.NoError(t, store.UpsertJob(old))

	// A fresh start for the same id must carry its new timestamp into the
	// projection, or a restart would GC the job on the stale clock.
	fresh := NewJob("gen-store-5", TypeWorkout)
	require.NoError(t, store.UpsertJob(fresh))

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.WithinDuration(t, fresh.StartedAt, jobs[0].StartedAt, time.Second)

	pruned, err := store.DeleteStale(22 * time.Hour)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}
