// Package coordinator owns the lifetime of the background generation
// tracking pipeline for one authenticated session.
package coordinator

import (
	"context"

	"go.uber.org/zap"

	"github.com/quanluon/gitgafit-web-sub000/ledger"
	"github.com/quanluon/gitgafit-web-sub000/logger"
	"github.com/quanluon/gitgafit-web-sub000/notify"
)

// Reconciler seeds the ledger from the backend's active-jobs list.
type Reconciler interface {
	Run(ctx context.Context) error
}

// PushAdapter is the slice of push behavior the coordinator drives.
type PushAdapter interface {
	Initialize(ctx context.Context) error
	Close()
}

// RealtimeAdapter is the slice of realtime behavior the coordinator drives.
type RealtimeAdapter interface {
	Connect(ctx context.Context, userID string) error
	Disconnect()
}

// Coordinator composes the job ledger with its delivery channels. It is
// constructed at app start and torn down at logout; nothing here is a
// package-level global, so tests build isolated instances.
//
// Startup order matters: the deduplicator subscribes before any channel
// can produce a terminal transition, realtime connects before
// reconciliation seeds, and push initialization failures never block the
// rest of the pipeline.
type Coordinator struct {
	Jobs *ledger.Ledger

	dedup      *notify.Deduplicator
	realtime   RealtimeAdapter
	push       PushAdapter
	reconciler Reconciler
	log        *zap.SugaredLogger

	started bool
}

// Options collects the coordinator's collaborators. Jobs and Dedup are
// required; nil adapters are skipped, which keeps partial wirings
// testable.
type Options struct {
	Jobs       *ledger.Ledger
	Dedup      *notify.Deduplicator
	Realtime   RealtimeAdapter
	Push       PushAdapter
	Reconciler Reconciler
	Log        *zap.SugaredLogger
}

// New assembles a coordinator from opts.
func New(opts Options) *Coordinator {
	log := opts.Log
	if log == nil {
		log = logger.Named("coordinator")
	}
	return &Coordinator{
		Jobs:       opts.Jobs,
		dedup:      opts.Dedup,
		realtime:   opts.Realtime,
		push:       opts.Push,
		reconciler: opts.Reconciler,
		log:        log,
	}
}

// Start brings the pipeline up for userID. The ledger is already hydrated
// by its constructor; Start wires the channels around it. Channel failures
// degrade the session rather than abort it: realtime, push, and
// reconciliation errors are logged and the rest of the pipeline continues.
func (c *Coordinator) Start(ctx context.Context, userID string) error {
	if c.started {
		return nil
	}
	c.started = true

	c.dedup.Start()

	if c.realtime != nil {
		if err := c.realtime.Connect(ctx, userID); err != nil {
			c.log.Warnw("Realtime connection failed; continuing without live updates",
				"error", err)
		}
	}

	if c.push != nil {
		if err := c.push.Initialize(ctx); err != nil {
			c.log.Warnw("Push initialization failed; foreground tracking unaffected",
				"error", err)
		}
	}

	if c.reconciler != nil {
		if err := c.reconciler.Run(ctx); err != nil {
			c.log.Warnw("Reconciliation failed; ledger left as-is",
				"error", err)
		}
	}

	c.log.Infow("Generation tracking started",
		"userID", userID,
		"activeJobs", c.Jobs.ActiveCount())
	return nil
}

// Stop tears the pipeline down in reverse order. All subscriptions are
// removed before their transports close.
func (c *Coordinator) Stop() {
	if !c.started {
		return
	}
	c.started = false

	if c.push != nil {
		c.push.Close()
	}
	if c.realtime != nil {
		c.realtime.Disconnect()
	}
	c.dedup.Stop()

	c.log.Infow("Generation tracking stopped")
}
