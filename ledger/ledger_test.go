package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gftest "github.com/quanluon/gitgafit-web-sub000/internal/testing"
)

func newMemoryLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(nil, nil, 0)
}

func TestStartGeneration(t *testing.T) {
	l := newMemoryLedger(t)

	l.StartGeneration("gen-1", TypeWorkout)

	job := l.Job("gen-1")
	require.NotNil(t, job)
	assert.Equal(t, StatusGenerating, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, TypeWorkout, job.Type)
	assert.NotEmpty(t, job.Message)
}

func TestStartGenerationEmptyIDIgnored(t *testing.T) {
	l := newMemoryLedger(t)
	l.StartGeneration("", TypeMeal)
	assert.Empty(t, l.Jobs())
}

func TestFullJobScenario(t *testing.T) {
	l := newMemoryLedger(t)

	l.StartGeneration("job-1", TypeWorkout)
	require.Len(t, l.Jobs(), 1)
	assert.Equal(t, StatusGenerating, l.Job("job-1").Status)
	assert.Equal(t, 0, l.Job("job-1").Progress)

	l.UpdateProgress("job-1", 40, "Halfway")
	assert.Equal(t, 40, l.Job("job-1").Progress)
	assert.Equal(t, "Halfway", l.Job("job-1").Message)

	l.CompleteGeneration("job-1", "plan-99")
	job := l.Job("job-1")
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "plan-99", job.ResultID)

	// A stray late progress tick must not touch the terminal job
	l.UpdateProgress("job-1", 10, "late")
	job = l.Job("job-1")
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	l := newMemoryLedger(t)

	l.StartGeneration("gen-2", TypeMeal)
	l.CompleteGeneration("gen-2", "plan-1")

	// Second completion is a no-op
	l.CompleteGeneration("gen-2", "plan-2")
	assert.Equal(t, "plan-1", l.Job("gen-2").ResultID)

	// A failure after completion does not revert the status
	l.FailGeneration("gen-2", "too late")
	job := l.Job("gen-2")
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Empty(t, job.Error)
}

func TestFailGeneration(t *testing.T) {
	l := newMemoryLedger(t)

	l.StartGeneration("gen-3", TypeInbody)
	l.FailGeneration("gen-3", "scan unreadable")

	job := l.Job("gen-3")
	assert.Equal(t, StatusError, job.Status)
	assert.Equal(t, "scan unreadable", job.Error)
}

func TestUnknownJobUpdatesAreNoOps(t *testing.T) {
	l := newMemoryLedger(t)

	l.UpdateProgress("nonexistent", 50, "x")
	l.CompleteGeneration("nonexistent", "plan-1")
	l.FailGeneration("nonexistent", "boom")
	l.ClearJob("nonexistent")

	assert.Empty(t, l.Jobs(), "no entries created by updates to unknown jobs")
}

func TestReSeedDoesNotRevertTerminalJob(t *testing.T) {
	l := newMemoryLedger(t)

	l.StartGeneration("gen-4", TypeWorkout)
	l.CompleteGeneration("gen-4", "plan-7")

	// Reconciliation re-asserts the job after the completion already landed
	l.StartGeneration("gen-4", TypeWorkout)

	assert.Equal(t, StatusCompleted, l.Job("gen-4").Status)
}

func TestProgressClamping(t *testing.T) {
	l := newMemoryLedger(t)
	l.StartGeneration("gen-5", TypeMeal)

	l.UpdateProgress("gen-5", 150, "")
	assert.Equal(t, 100, l.Job("gen-5").Progress)

	l.UpdateProgress("gen-5", -10, "")
	assert.Equal(t, 0, l.Job("gen-5").Progress)
}

func TestClearCompletedJobs(t *testing.T) {
	l := newMemoryLedger(t)

	l.StartGeneration("a", TypeWorkout)
	l.StartGeneration("b", TypeMeal)
	l.StartGeneration("c", TypeInbody)
	l.CompleteGeneration("b", "plan-1")
	l.FailGeneration("c", "boom")

	l.ClearCompletedJobs()

	require.Len(t, l.Jobs(), 1)
	assert.NotNil(t, l.Job("a"))
}

func TestClearStaleJobs(t *testing.T) {
	l := newMemoryLedger(t)

	l.StartGeneration("old", TypeWorkout)
	l.StartGeneration("fresh", TypeMeal)
	l.mu.Lock()
	l.jobs["old"].StartedAt = time.Now().Add(-25 * time.Hour)
	l.mu.Unlock()

	l.ClearStaleJobs(24 * time.Hour)

	assert.Nil(t, l.Job("old"))
	assert.NotNil(t, l.Job("fresh"))
}

func TestExpandedFlag(t *testing.T) {
	l := newMemoryLedger(t)
	assert.False(t, l.Expanded())

	l.ToggleExpanded()
	assert.True(t, l.Expanded())

	l.SetExpanded(false)
	assert.False(t, l.Expanded())
}

func TestSubscribersReceiveSnapshots(t *testing.T) {
	l := newMemoryLedger(t)

	ch := l.Subscribe()
	defer func() {
		l.Unsubscribe(ch)
		close(ch)
	}()

	l.StartGeneration("gen-6", TypeBodyPhoto)

	select {
	case job := <-ch:
		assert.Equal(t, "gen-6", job.ID)
		assert.Equal(t, StatusGenerating, job.Status)
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}

	l.CompleteGeneration("gen-6", "scan-1")
	select {
	case job := <-ch:
		assert.Equal(t, StatusCompleted, job.Status)
	case <-time.After(time.Second):
		t.Fatal("no terminal notification received")
	}
}

func TestUnsubscribeRemovesOnlyThatChannel(t *testing.T) {
	l := newMemoryLedger(t)

	ch1 := l.Subscribe()
	ch2 := l.Subscribe()
	l.Unsubscribe(ch1)

	l.StartGeneration("gen-7", TypeWorkout)

	select {
	case <-ch1:
		t.Fatal("unsubscribed channel received a notification")
	default:
	}

	select {
	case job := <-ch2:
		assert.Equal(t, "gen-7", job.ID)
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber received nothing")
	}
}

func TestSubscriberSnapshotsAreCopies(t *testing.T) {
	l := newMemoryLedger(t)
	ch := l.Subscribe()

	l.StartGeneration("gen-8", TypeMeal)
	snapshot := <-ch
	snapshot.Progress = 99

	assert.Equal(t, 0, l.Job("gen-8").Progress, "mutating a snapshot must not touch the ledger")
}

func TestPersistenceFilterOnlyGenerating(t *testing.T) {
	conn := gftest.CreateTestDB(t)
	store := NewStore(conn)
	l := New(store, nil, 0)

	l.StartGeneration("a", TypeWorkout)
	l.StartGeneration("b", TypeMeal)
	l.StartGeneration("c", TypeInbody)
	l.CompleteGeneration("b", "plan-1")
	l.FailGeneration("c", "boom")

	persisted, err := store.ListJobs()
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "a", persisted[0].ID)
}

func TestHydrateRestoresGeneratingJobs(t *testing.T) {
	conn := gftest.CreateTestDB(t)
	store := NewStore(conn)

	first := New(store, nil, 0)
	first.StartGeneration("survivor", TypeWorkout)
	first.UpdateProgress("survivor", 30, "working")
	first.StartGeneration("done", TypeMeal)
	first.CompleteGeneration("done", "plan-5")
	first.SetExpanded(true)

	// Simulated restart: a fresh ledger over the same database
	second := New(store, nil, 0)

	require.Len(t, second.Jobs(), 1)
	job := second.Job("survivor")
	require.NotNil(t, job)
	assert.Equal(t, StatusGenerating, job.Status)
	assert.Equal(t, 30, job.Progress)
	assert.False(t, second.Expanded(), "visibility flag always resets to collapsed")
}

func TestHydratePrunesStaleJobs(t *testing.T) {
	conn := gftest.CreateTestDB(t)
	store := NewStore(conn)

	stale := NewJob("stale", TypeWorkout)
	stale.StartedAt = time.Now().Add(-25 * time.Hour)
	require.NoError(t, store.UpsertJob(stale))

	fresh := NewJob("fresh", TypeMeal)
	fresh.StartedAt = time.Now().Add(-1 * time.Hour)
	require.NoError(t, store.UpsertJob(fresh))

	l := New(store, nil, 24*time.Hour)

	assert.Nil(t, l.Job("stale"))
	assert.NotNil(t, l.Job("fresh"))
}

func TestConcurrentMutationsDoNotCorrupt(t *testing.T) {
	l := newMemoryLedger(t)

	l.StartGeneration("left", TypeWorkout)
	l.StartGeneration("right", TypeMeal)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			l.UpdateProgress("left", i%100, "left tick")
		}
		close(done)
	}()
	for i := 0; i < 200; i++ {
		l.UpdateProgress("right", i%100, "right tick")
	}
	<-done

	l.CompleteGeneration("left", "plan-l")
	l.CompleteGeneration("right", "plan-r")

	assert.Equal(t, StatusCompleted, l.Job("left").Status)
	assert.Equal(t, StatusCompleted, l.Job("right").Status)
}
