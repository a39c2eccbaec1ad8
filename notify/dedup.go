// Package notify turns terminal job transitions into user-facing alerts,
// guaranteeing at most one alert per job no matter how many transports
// reported the transition.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quanluon/gitgafit-web-sub000/ledger"
)

// DefaultGracePeriod is how long a terminal job stays in the ledger after
// its alert fires before being cleared automatically.
const DefaultGracePeriod = 5 * time.Second

// GenericFailureMessage is shown when an ERROR job carries no
// server-supplied message.
const GenericFailureMessage = "Generation failed. Please try again."

// Alerter receives the single user-facing alert per terminal job.
type Alerter interface {
	JobCompleted(job *ledger.Job)
	JobFailed(job *ledger.Job, message string)
}

// LogAlerter is the default Alerter: it writes alerts to the log. The UI
// layer substitutes its own implementation.
type LogAlerter struct {
	Log *zap.SugaredLogger
}

func (a *LogAlerter) JobCompleted(job *ledger.Job) {
	a.Log.Infow("Generation complete",
		"job_id", job.ID,
		"type", job.Type,
		"result_id", job.ResultID,
	)
}

func (a *LogAlerter) JobFailed(job *ledger.Job, message string) {
	a.Log.Warnw("Generation failed",
		"job_id", job.ID,
		"type", job.Type,
		"message", message,
	)
}

// Deduplicator observes ledger transitions into terminal states and emits
// exactly one alert per job id, then schedules automatic removal of the
// job after the grace period.
//
// The seen-set is scoped to this instance's lifetime and is not persisted:
// terminal jobs don't survive a restart either, so a redelivered terminal
// event after restart may re-alert. Accepted tradeoff.
type Deduplicator struct {
	jobs    *ledger.Ledger
	alerter Alerter
	grace   time.Duration
	log     *zap.SugaredLogger

	mu     sync.Mutex
	seen   map[string]bool
	timers []*time.Timer

	ch   chan *ledger.Job
	done chan struct{}
}

// New creates a deduplicator. grace <= 0 selects DefaultGracePeriod; a nil
// alerter falls back to logging.
func New(jobs *ledger.Ledger, alerter Alerter, log *zap.SugaredLogger, grace time.Duration) *Deduplicator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if alerter == nil {
		alerter = &LogAlerter{Log: log}
	}
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	return &Deduplicator{
		jobs:    jobs,
		alerter: alerter,
		grace:   grace,
		log:     log,
		seen:    make(map[string]bool),
	}
}

// Start subscribes to ledger updates and begins observing. It also sweeps
// jobs already terminal at start time, covering transitions that happened
// between ledger construction and Start.
func (d *Deduplicator) Start() {
	d.ch = d.jobs.Subscribe()
	d.done = make(chan struct{})

	for _, job := range d.jobs.Jobs() {
		d.observe(job)
	}

	go func() {
		defer close(d.done)
		for job := range d.ch {
			d.observe(job)
		}
	}()
}

// Stop unsubscribes and cancels pending auto-clear timers. Unsubscribe
// happens before the channel close so no in-flight notification can hit a
// closed channel.
func (d *Deduplicator) Stop() {
	if d.ch == nil {
		return
	}
	d.jobs.Unsubscribe(d.ch)
	close(d.ch)
	<-d.done
	d.ch = nil

	d.mu.Lock()
	for _, timer := range d.timers {
		timer.Stop()
	}
	d.timers = nil
	d.mu.Unlock()
}

// observe handles one ledger snapshot.
func (d *Deduplicator) observe(job *ledger.Job) {
	if !job.Status.IsTerminal() {
		return
	}

	d.mu.Lock()
	if d.seen[job.ID] {
		d.mu.Unlock()
		return
	}
	d.seen[job.ID] = true
	d.mu.Unlock()

	switch job.Status {
	case ledger.StatusCompleted:
		d.alerter.JobCompleted(job)
	case ledger.StatusError:
		message := job.Error
		if message == "" {
			message = GenericFailureMessage
		}
		d.alerter.JobFailed(job, message)
		// Force the summary open so the error is visible without user action
		d.jobs.SetExpanded(true)
	}

	d.scheduleClear(job.ID)
}

// scheduleClear removes the job from the ledger after the grace period so
// dismissed alerts don't accumulate.
func (d *Deduplicator) scheduleClear(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	timer := time.AfterFunc(d.grace, func() {
		d.jobs.ClearJob(jobID)
	})
	d.timers = append(d.timers, timer)
}
