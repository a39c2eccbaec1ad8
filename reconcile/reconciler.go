// Package reconcile backfills the job ledger from the backend's
// authoritative active-job list at session start.
//
// This is the only path that can recover a job the client never locally
// started: one begun on another device, or begun before this agent was
// running. Seeding leans entirely on the ledger's idempotence; a job the
// ledger already tracks is simply re-asserted and the monotonic status
// invariant protects anything already terminal.
package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/quanluon/gitgafit-web-sub000/errors"
	"github.com/quanluon/gitgafit-web-sub000/internal/apiclient"
	"github.com/quanluon/gitgafit-web-sub000/ledger"
)

// ActiveJobsPath is the backend endpoint listing currently running
// generation tasks for the authenticated user.
const ActiveJobsPath = "/api/generations/active"

// activeJob is the wire shape of one backend job entry. The type field
// carries a backend-specific token, not the internal enum.
type activeJob struct {
	JobID    string `json:"jobId"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// typeTokens maps backend job-type tokens onto the internal enum.
var typeTokens = map[string]ledger.GenerationType{
	"workout-generation":  ledger.TypeWorkout,
	"meal-generation":     ledger.TypeMeal,
	"inbody-ocr":          ledger.TypeInbody,
	"body-photo-analysis": ledger.TypeBodyPhoto,
}

// Seeder is the ledger surface the reconciler needs.
type Seeder interface {
	StartGeneration(jobID string, genType ledger.GenerationType)
	UpdateProgress(jobID string, progress int, message string)
}

// Reconciler fetches active jobs once per session start and seeds the
// ledger with them.
type Reconciler struct {
	api  *apiclient.Client
	jobs Seeder
	log  *zap.SugaredLogger
}

// New creates a reconciler.
func New(api *apiclient.Client, jobs Seeder, log *zap.SugaredLogger) *Reconciler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Reconciler{api: api, jobs: jobs, log: log}
}

// Run fetches the active-job list and seeds the ledger. A fetch failure is
// fail-open: the error is logged and returned, the ledger is left exactly
// as it was, and the next session start retries.
func (r *Reconciler) Run(ctx context.Context) error {
	var active []activeJob
	if err := r.api.GetJSON(ctx, ActiveJobsPath, &active); err != nil {
		r.log.Warnw("Active-job reconciliation fetch failed", "error", err)
		return errors.Wrap(err, "fetch active jobs")
	}

	seeded := 0
	for _, entry := range active {
		if entry.JobID == "" {
			continue
		}

		genType, ok := typeTokens[entry.Type]
		if !ok {
			r.log.Debugw("Skipping active job with unknown type token",
				"job_id", entry.JobID,
				"type", entry.Type,
			)
			continue
		}

		r.jobs.StartGeneration(entry.JobID, genType)
		if entry.Progress > 0 || entry.Message != "" {
			r.jobs.UpdateProgress(entry.JobID, entry.Progress, entry.Message)
		}
		seeded++
	}

	if seeded > 0 {
		r.log.Infow("Reconciled active generation jobs", "count", seeded)
	}
	return nil
}
