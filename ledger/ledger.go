package ledger

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultRetention is how long an in-flight job may survive in the
	// persisted projection before the hydrate-time collector prunes it.
	DefaultRetention = 24 * time.Hour

	// SubscriberChannelBufferSize is the buffer size for subscriber channels
	SubscriberChannelBufferSize = 100
)

// Ledger is the authoritative collection of generation jobs plus the
// summary-panel visibility flag.
//
// All mutations are atomic with respect to the in-memory collection. The
// monotonic status invariant is enforced here, at the single mutation
// chokepoint, rather than at each delivery call site: a terminal job is
// never reverted by a late GENERATING update, and updates referencing
// unknown jobs are defined no-ops.
//
// Construct one per session with New and tear it down at logout; there is
// no ambient global instance.
type Ledger struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	expanded    bool
	store       *Store
	subscribers []chan *Job
	log         *zap.SugaredLogger
}

// New creates a ledger and hydrates it from the persisted projection.
// Jobs older than retention are pruned before loading (staleness GC);
// pass 0 to use DefaultRetention. A nil store yields a purely in-memory
// ledger.
func New(store *Store, log *zap.SugaredLogger, retention time.Duration) *Ledger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}

	l := &Ledger{
		jobs:  make(map[string]*Job),
		store: store,
		log:   log,
	}

	if store != nil {
		l.hydrate(retention)
	}

	return l
}

// hydrate loads persisted in-flight jobs, dropping stale ones first.
func (l *Ledger) hydrate(retention time.Duration) {
	pruned, err := l.store.DeleteStale(retention)
	if err != nil {
		l.log.Warnw("Failed to prune stale jobs", "error", err)
	} else if pruned > 0 {
		l.log.Infow("Pruned stale generation jobs",
			"count", pruned,
			"retention", retention,
		)
	}

	jobs, err := l.store.ListJobs()
	if err != nil {
		l.log.Warnw("Failed to hydrate ledger", "error", err)
		return
	}

	for _, job := range jobs {
		l.jobs[job.ID] = job
	}
	if len(jobs) > 0 {
		l.log.Infow("Hydrated in-flight generation jobs", "count", len(jobs))
	}
}

// StartGeneration inserts a new GENERATING job at progress zero. A
// duplicate jobID overwrites the existing entry, so re-insertion is
// idempotent (covers reconciliation re-seeding an already-known job).
func (l *Ledger) StartGeneration(jobID string, genType GenerationType) {
	if jobID == "" {
		return
	}

	l.mu.Lock()
	// Re-asserting a job the ledger already tracks must not revert a
	// terminal state: reconciliation re-seeds blindly and may race a
	// completion delivered on another channel.
	if existing, ok := l.jobs[jobID]; ok && existing.Status.IsTerminal() {
		l.mu.Unlock()
		return
	}
	job := NewJob(jobID, genType)
	l.jobs[jobID] = job
	l.persist(job)
	snapshot := job.clone()
	l.notifyLocked(snapshot)
	l.mu.Unlock()
}

// UpdateProgress updates progress and message only if the job exists and is
// still GENERATING. Ignored otherwise, so stale progress ticks can neither
// revive nor corrupt a terminal job.
func (l *Ledger) UpdateProgress(jobID string, progress int, message string) {
	l.mu.Lock()
	job, ok := l.jobs[jobID]
	if !ok || job.Status != StatusGenerating {
		l.mu.Unlock()
		return
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	job.Progress = progress
	if message != "" {
		job.Message = message
	}
	l.persist(job)
	snapshot := job.clone()
	l.notifyLocked(snapshot)
	l.mu.Unlock()
}

// CompleteGeneration transitions a job to COMPLETED, forcing progress to
// 100. No-op if the job is absent or already terminal (first terminal
// report wins across channels).
func (l *Ledger) CompleteGeneration(jobID, resultID string) {
	l.terminal(jobID, func(job *Job) { job.Complete(resultID) })
}

// FailGeneration transitions a job to ERROR. No-op if the job is absent or
// already terminal.
func (l *Ledger) FailGeneration(jobID, errMsg string) {
	l.terminal(jobID, func(job *Job) { job.Fail(errMsg) })
}

// terminal applies an absorbing transition under the ledger lock and drops
// the job from the persisted projection.
func (l *Ledger) terminal(jobID string, transition func(*Job)) {
	l.mu.Lock()
	job, ok := l.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		l.mu.Unlock()
		return
	}

	transition(job)
	l.unpersist(jobID)
	snapshot := job.clone()
	l.notifyLocked(snapshot)
	l.mu.Unlock()
}

// ClearJob removes a job. Idempotent: clearing an unknown job is a no-op.
func (l *Ledger) ClearJob(jobID string) {
	l.mu.Lock()
	if _, ok := l.jobs[jobID]; ok {
		delete(l.jobs, jobID)
		l.unpersist(jobID)
	}
	l.mu.Unlock()
}

// ClearCompletedJobs removes every job in a terminal state.
func (l *Ledger) ClearCompletedJobs() {
	l.mu.Lock()
	for id, job := range l.jobs {
		if job.Status.IsTerminal() {
			delete(l.jobs, id)
			l.unpersist(id)
		}
	}
	l.mu.Unlock()
}

// ClearStaleJobs removes in-memory jobs older than the retention window.
func (l *Ledger) ClearStaleJobs(retention time.Duration) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := time.Now().Add(-retention)

	l.mu.Lock()
	for id, job := range l.jobs {
		if job.StartedAt.Before(cutoff) {
			delete(l.jobs, id)
			l.unpersist(id)
		}
	}
	l.mu.Unlock()
}

// Job returns a snapshot of one job, or nil if untracked.
func (l *Ledger) Job(jobID string) *Job {
	l.mu.RLock()
	defer l.mu.RUnlock()

	job, ok := l.jobs[jobID]
	if !ok {
		return nil
	}
	return job.clone()
}

// Jobs returns a snapshot of every tracked job.
func (l *Ledger) Jobs() []*Job {
	l.mu.RLock()
	defer l.mu.RUnlock()

	jobs := make([]*Job, 0, len(l.jobs))
	for _, job := range l.jobs {
		jobs = append(jobs, job.clone())
	}
	return jobs
}

// ActiveCount returns the number of jobs still generating.
func (l *Ledger) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, job := range l.jobs {
		if job.Status == StatusGenerating {
			count++
		}
	}
	return count
}

// ToggleExpanded flips the summary-panel visibility flag.
func (l *Ledger) ToggleExpanded() {
	l.mu.Lock()
	l.expanded = !l.expanded
	l.mu.Unlock()
}

// SetExpanded sets the summary-panel visibility flag.
func (l *Ledger) SetExpanded(expanded bool) {
	l.mu.Lock()
	l.expanded = expanded
	l.mu.Unlock()
}

// Expanded returns the summary-panel visibility flag. Never persisted:
// a restart always comes back collapsed.
func (l *Ledger) Expanded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.expanded
}

// Subscribe returns a channel that receives a snapshot after every job
// mutation. The caller must Unsubscribe when done; the channel is buffered
// so a slow consumer never blocks the mutation path.
func (l *Ledger) Subscribe() chan *Job {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan *Job, SubscriberChannelBufferSize)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel. The channel is NOT closed here;
// callers close it themselves after unsubscribing to avoid send-on-closed
// panics from in-flight notifications.
func (l *Ledger) Unsubscribe(ch chan *Job) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, sub := range l.subscribers {
		if sub == ch {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			return
		}
	}
}

// notifyLocked sends a job snapshot to all subscribers.
// REQUIRES: l.mu must be held by the caller. Non-blocking send: a full
// subscriber channel is skipped.
func (l *Ledger) notifyLocked(job *Job) {
	for _, ch := range l.subscribers {
		select {
		case ch <- job:
		default:
			// Channel full - skip
		}
	}
}

// persist writes a GENERATING job into the projection. Write failures are
// logged but never fail the in-memory mutation: the ledger in memory stays
// authoritative for the session.
func (l *Ledger) persist(job *Job) {
	if l.store == nil {
		return
	}
	if err := l.store.UpsertJob(job); err != nil {
		l.log.Warnw("Failed to persist job",
			"job_id", job.ID,
			"error", err,
		)
	}
}

// unpersist drops a job from the projection.
func (l *Ledger) unpersist(jobID string) {
	if l.store == nil {
		return
	}
	if err := l.store.DeleteJob(jobID); err != nil {
		l.log.Warnw("Failed to remove persisted job",
			"job_id", jobID,
			"error", err,
		)
	}
}
