// Package realtime maintains the live websocket channel that streams
// generation job events to the agent while a session is active.
package realtime

import "encoding/json"

// Connection lifecycle message types. The client announces its identity
// immediately after dialing; the server answers with exactly one of the
// registration results.
const (
	EventRegisterUser        = "register-user"
	EventRegistrationSuccess = "registration-success"
	EventRegistrationError   = "registration-error"
)

// Generation event types, one set per job kind. Suffixes follow the
// backend's naming: started, progress, complete, error.
const (
	EventWorkoutStarted  = "workout-started"
	EventWorkoutProgress = "workout-progress"
	EventWorkoutComplete = "workout-complete"
	EventWorkoutError    = "workout-error"

	EventMealStarted  = "meal-started"
	EventMealProgress = "meal-progress"
	EventMealComplete = "meal-complete"
	EventMealError    = "meal-error"

	EventInbodyStarted  = "inbody-started"
	EventInbodyProgress = "inbody-progress"
	EventInbodyComplete = "inbody-complete"
	EventInbodyError    = "inbody-error"

	EventBodyPhotoStarted  = "body-photo-started"
	EventBodyPhotoProgress = "body-photo-progress"
	EventBodyPhotoComplete = "body-photo-complete"
	EventBodyPhotoError    = "body-photo-error"
)

// Envelope is the wire framing for every channel message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is the payload carried by generation events.
// Completion events carry the produced artifact id as either resultId or
// planId depending on the job kind; ResultID resolves whichever is set.
type Event struct {
	JobID    string `json:"jobId"`
	Progress *int   `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
	Result   string `json:"resultId,omitempty"`
	PlanID   string `json:"planId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ResultID returns the artifact identifier regardless of which wire field
// the backend used.
func (e Event) ResultID() string {
	if e.Result != "" {
		return e.Result
	}
	return e.PlanID
}

// registerPayload is the outbound registration handshake body.
type registerPayload struct {
	UserID string `json:"userId"`
}
