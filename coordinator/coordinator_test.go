package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanluon/gitgafit-web-sub000/errors"
	"github.com/quanluon/gitgafit-web-sub000/ledger"
	"github.com/quanluon/gitgafit-web-sub000/notify"
)

type fakeRealtime struct {
	connects    int
	disconnects int
	userID      string
	err         error
}

func (f *fakeRealtime) Connect(ctx context.Context, userID string) error {
	f.connects++
	f.userID = userID
	return f.err
}

func (f *fakeRealtime) Disconnect() { f.disconnects++ }

type fakePush struct {
	initializes int
	closes      int
	err         error
}

func (f *fakePush) Initialize(ctx context.Context) error {
	f.initializes++
	return f.err
}

func (f *fakePush) Close() { f.closes++ }

type fakeReconciler struct {
	runs int
	err  error
	seed func()
}

func (f *fakeReconciler) Run(ctx context.Context) error {
	f.runs++
	if f.seed != nil {
		f.seed()
	}
	return f.err
}

type countingAlerter struct {
	completed int
	failed    int
}

func (a *countingAlerter) JobCompleted(job *ledger.Job)        { a.completed++ }
func (a *countingAlerter) JobFailed(job *ledger.Job, _ string) { a.failed++ }

func testCoordinator(t *testing.T) (*Coordinator, *fakeRealtime, *fakePush, *fakeReconciler) {
	t.Helper()

	jobs := ledger.New(nil, nil, 0)
	rt := &fakeRealtime{}
	p := &fakePush{}
	rec := &fakeReconciler{}
	c := New(Options{
		Jobs:       jobs,
		Dedup:      notify.New(jobs, &countingAlerter{}, nil, time.Hour),
		Realtime:   rt,
		Push:       p,
		Reconciler: rec,
	})
	return c, rt, p, rec
}

func TestStartWiresAllChannels(t *testing.T) {
	c, rt, p, rec := testCoordinator(t)

	require.NoError(t, c.Start(context.Background(), "user-1"))
	defer c.Stop()

	assert.Equal(t, 1, rt.connects)
	assert.Equal(t, "user-1", rt.userID)
	assert.Equal(t, 1, p.initializes)
	assert.Equal(t, 1, rec.runs)
}

func TestStartIsIdempotent(t *testing.T) {
	c, rt, _, _ := testCoordinator(t)

	require.NoError(t, c.Start(context.Background(), "user-1"))
	require.NoError(t, c.Start(context.Background(), "user-1"))
	defer c.Stop()

	assert.Equal(t, 1, rt.connects)
}

func TestPushFailureDoesNotBlockReconciliation(t *testing.T) {
	c, _, p, rec := testCoordinator(t)
	p.err = errors.New("push service down")

	require.NoError(t, c.Start(context.Background(), "user-1"))
	defer c.Stop()

	assert.Equal(t, 1, rec.runs)
}

func TestRealtimeFailureDegradesQuietly(t *testing.T) {
	c, rt, p, rec := testCoordinator(t)
	rt.err = errors.New("dial refused")

	require.NoError(t, c.Start(context.Background(), "user-1"))
	defer c.Stop()

	assert.Equal(t, 1, p.initializes)
	assert.Equal(t, 1, rec.runs)
}

func TestReconcilerSeedsLiveLedger(t *testing.T) {
	c, _, _, rec := testCoordinator(t)
	rec.seed = func() {
		c.Jobs.StartGeneration("job-1", ledger.TypeWorkout)
	}

	require.NoError(t, c.Start(context.Background(), "user-1"))
	defer c.Stop()

	assert.Equal(t, 1, c.Jobs.ActiveCount())
}

func TestStopTearsDownInReverseOrder(t *testing.T) {
	c, rt, p, _ := testCoordinator(t)

	require.NoError(t, c.Start(context.Background(), "user-1"))
	c.Stop()

	assert.Equal(t, 1, p.closes)
	assert.Equal(t, 1, rt.disconnects)

	// Stop without a matching Start is a no-op.
	c.Stop()
	assert.Equal(t, 1, p.closes)
}
