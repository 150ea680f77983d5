package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSessionStart Stage = "SESSION_START"
	StageAuthDone     Stage = "AUTH_DONE"
	StageAuthError    Stage = "AUTH_ERROR"
	StageOpStart      Stage = "OP_START"
	StageOpDone       Stage = "OP_DONE"
	StageOpError      Stage = "OP_ERROR"
	StageOpSkipped    Stage = "OP_SKIPPED"
	StageSessionDone  Stage = "SESSION_DONE"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes.
const (
	Status2xx       StatusClass = "2xx"
	Status3xx       StatusClass = "3xx"
	Status4xx       StatusClass = "4xx"
	Status5xx       StatusClass = "5xx"
	StatusTransport StatusClass = "transport"
	StatusOther     StatusClass = "other"
)

// Event captures a single session milestone.
type Event struct {
	// SessionID identifies the session using the 16-byte UUID form.
	SessionID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Operation names the remote operation for OP_* stages.
	Operation string
	// StatusCode is the HTTP status, zero for transport failures.
	StatusCode  int
	StatusClass StatusClass
	// Bytes is the response payload size.
	Bytes int64
	Dur   time.Duration
	// Note carries low-volume context such as the failure reason. Never a credential.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == [16]byte{} {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSessionStart, StageSessionDone, StageAuthDone, StageAuthError:
	case StageOpStart, StageOpSkipped:
		if e.Operation == "" {
			return fmt.Errorf("%s requires operation", e.Stage)
		}
	case StageOpDone, StageOpError:
		if e.Operation == "" {
			return fmt.Errorf("%s requires operation", e.Stage)
		}
		if e.StatusClass == "" {
			return fmt.Errorf("%s requires status class", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// SessionUUID converts the binary session ID to uuid.UUID.
func (e Event) SessionUUID() uuid.UUID {
	return uuid.UUID(e.SessionID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes. Zero means no response was received.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code == 0:
		return StatusTransport
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
