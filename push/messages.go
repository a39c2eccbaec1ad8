package push

import (
	"encoding/json"

	"github.com/quanluon/gitgafit-web-sub000/logger"
)

// Worker link message types.
const (
	// MessageTypeFirebaseConfig carries the push-service configuration from
	// the agent to the background worker.
	MessageTypeFirebaseConfig = "FIREBASE_CONFIG"
)

// ConfigKey is the fixed key under which the push-service configuration is
// cached in the shared durable store. The worker self-initializes from this
// key when it restarts without the agent re-running the handshake.
const ConfigKey = "firebase-config"

// Message is the envelope exchanged over the worker link.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Notification categories carried in push payloads.
const (
	CategoryComplete = "complete"
	CategoryError    = "error"
)

// Payload is the data payload of a generation push message. The backend
// only pushes terminal outcomes; in-flight progress travels over the
// realtime channel.
type Payload struct {
	GenerationType       string `json:"generationType"`
	JobID                string `json:"jobId"`
	NotificationCategory string `json:"notificationCategory"`
	ResultID             string `json:"resultId,omitempty"`
	PlanID               string `json:"planId,omitempty"`
	Error                string `json:"error,omitempty"`
}

// resultID resolves the result reference, preferring resultId over the
// older planId field some backends still send.
func (p Payload) resultID() string {
	if p.ResultID != "" {
		return p.ResultID
	}
	return p.PlanID
}

// JobLedger is the slice of ledger behavior a push delivery needs.
type JobLedger interface {
	CompleteGeneration(jobID, resultID string)
	FailGeneration(jobID, errMsg string)
}

// Apply maps the payload onto a terminal ledger mutation. Payloads without
// a jobId or with an unrecognized category are dropped. The ledger's
// monotonic gate absorbs redundant deliveries, so a push arriving after
// the realtime event already completed the job is harmless.
func (p Payload) Apply(jobs JobLedger) {
	if p.JobID == "" {
		logger.Debugw("Dropping push payload without jobId", "type", p.GenerationType)
		return
	}

	switch p.NotificationCategory {
	case CategoryComplete:
		jobs.CompleteGeneration(p.JobID, p.resultID())
	case CategoryError:
		jobs.FailGeneration(p.JobID, p.Error)
	default:
		logger.Debugw("Dropping push payload with unknown category",
			"jobId", p.JobID,
			"category", p.NotificationCategory,
		)
	}
}
