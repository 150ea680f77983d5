package sequencer

import (
	"encoding/json"
	"time"
)

// Outcome classifies a Result.
type Outcome string

// Possible outcomes. Skipped is only produced when the failure policy stops
// the sequence or the session is canceled.
const (
	OutcomeSuccessPayload Outcome = "success_with_payload"
	OutcomeSuccess        Outcome = "success"
	OutcomeFailure        Outcome = "failure"
	OutcomeSkipped        Outcome = "skipped"
)

// FailureKind separates HTTP status failures from transport failures. Both are
// handled identically for flow control.
type FailureKind string

// Failure kinds.
const (
	FailureStatus    FailureKind = "status"
	FailureTransport FailureKind = "transport"
)

// Result is the outcome of one operation.
type Result struct {
	Operation string  `json:"operation"`
	Outcome   Outcome `json:"outcome"`
	// Payload is the response body verbatim, set only for OutcomeSuccessPayload.
	Payload    json.RawMessage `json:"payload,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
	Kind       FailureKind     `json:"failure_kind,omitempty"`
	// Reason is the status code or the transport error text.
	Reason string `json:"reason,omitempty"`
	// Message is the human-readable line shown to the user.
	Message   string        `json:"message"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Succeeded reports whether the backend answered 200.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeSuccessPayload
}

// Failed reports whether the operation ran and failed.
func (r Result) Failed() bool {
	return r.Outcome == OutcomeFailure
}
