// Package ledger tracks in-flight generation jobs across delivery channels.
//
// The ledger is the single source of truth for "what generation jobs exist
// and what state are they in". Three transports (realtime channel, push
// messages, session-start reconciliation) deliver events concurrently, out
// of order, and more than once; all of them funnel into the ledger's
// mutation operations, where a monotonic status invariant resolves the
// races: terminal states are absorbing and unknown jobs are ignored.
package ledger

import (
	"time"
)

// GenerationType identifies the kind of server-side generation task.
type GenerationType string

const (
	TypeWorkout   GenerationType = "WORKOUT"
	TypeMeal      GenerationType = "MEAL"
	TypeInbody    GenerationType = "INBODY"
	TypeBodyPhoto GenerationType = "BODY_PHOTO"
)

// IsValidType returns true if the string is a known GenerationType.
func IsValidType(s string) bool {
	switch GenerationType(s) {
	case TypeWorkout, TypeMeal, TypeInbody, TypeBodyPhoto:
		return true
	default:
		return false
	}
}

// JobStatus represents the current state of a tracked job.
// There is no persisted idle state: absence from the ledger means idle.
type JobStatus string

const (
	StatusGenerating JobStatus = "GENERATING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusError      JobStatus = "ERROR"
)

// IsTerminal reports whether the status is absorbing: once a job reaches a
// terminal status it never transitions again.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Job is one tracked asynchronous generation task.
type Job struct {
	ID        string         `json:"jobId"`
	Type      GenerationType `json:"type"`
	Status    JobStatus      `json:"status"`
	Progress  int            `json:"progress"` // 0-100, meaningful only while generating
	Message   string         `json:"message"`
	Error     string         `json:"error,omitempty"`    // set only when Status == StatusError
	ResultID  string         `json:"resultId,omitempty"` // set only when Status == StatusCompleted
	StartedAt time.Time      `json:"startedAt"`          // used only for staleness GC
}

// NewJob creates a fresh GENERATING job at progress zero.
func NewJob(jobID string, genType GenerationType) *Job {
	return &Job{
		ID:        jobID,
		Type:      genType,
		Status:    StatusGenerating,
		Progress:  0,
		Message:   defaultMessage(genType),
		StartedAt: time.Now(),
	}
}

// Complete transitions the job to COMPLETED and forces progress to 100.
func (j *Job) Complete(resultID string) {
	j.Status = StatusCompleted
	j.Progress = 100
	j.ResultID = resultID
	j.Message = completedMessage(j.Type)
}

// Fail transitions the job to ERROR. Message always ends up non-empty:
// a server failure without detail still needs readable status text.
func (j *Job) Fail(errMsg string) {
	j.Status = StatusError
	j.Error = errMsg
	if errMsg == "" {
		errMsg = failedMessage
	}
	j.Message = errMsg
}

// clone returns a copy safe to hand to subscribers and snapshot callers.
func (j *Job) clone() *Job {
	c := *j
	return &c
}

// failedMessage is the status text for failures that arrive without a
// server-supplied message.
const failedMessage = "Generation failed. Please try again."

func defaultMessage(t GenerationType) string {
	switch t {
	case TypeWorkout:
		return "Generating your workout plan"
	case TypeMeal:
		return "Generating your meal plan"
	case TypeInbody:
		return "Analyzing your body composition scan"
	case TypeBodyPhoto:
		return "Analyzing your body photo"
	default:
		return "Generating"
	}
}

func completedMessage(t GenerationType) string {
	switch t {
	case TypeWorkout:
		return "Workout plan ready"
	case TypeMeal:
		return "Meal plan ready"
	case TypeInbody:
		return "Body composition analysis ready"
	case TypeBodyPhoto:
		return "Body photo analysis ready"
	default:
		return "Done"
	}
}
