// Package session holds the in-memory state of one interactive session: the
// credential the user typed and whether the backend has accepted it.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/flowfact-console/internal/logging"
)

// State is the coarse lifecycle position of a session.
type State string

// Session states.
const (
	StateAwaitingCredential State = "awaiting_credential"
	StateRejected           State = "rejected"
	StateVerified           State = "verified"
	StateClosed             State = "closed"
)

// Session is never persisted. It is safe for concurrent reads.
type Session struct {
	mu         sync.RWMutex
	id         uuid.UUID
	startedAt  time.Time
	credential string
	state      State
}

// New starts a session awaiting a credential.
func New(id uuid.UUID, startedAt time.Time) *Session {
	return &Session{
		id:        id,
		startedAt: startedAt,
		state:     StateAwaitingCredential,
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// StartedAt returns when the session began.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Submit records a new credential exactly as given and clears any previous
// verdict. A blank or whitespace-only credential leaves the session awaiting
// input and reports false.
func (s *Session) Submit(credential string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	if strings.TrimSpace(credential) == "" {
		s.credential = ""
		s.state = StateAwaitingCredential
		return false
	}
	s.credential = credential
	s.state = StateAwaitingCredential
	return true
}

// MarkVerified records the backend's verdict for the current credential.
func (s *Session) MarkVerified(verified bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credential == "" || s.state == StateClosed {
		return
	}
	if verified {
		s.state = StateVerified
	} else {
		s.state = StateRejected
	}
}

// Verified reports whether the current credential has been accepted.
func (s *Session) Verified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateVerified
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Credential returns the submitted credential.
func (s *Session) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Close discards the credential; the session cannot be verified again.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = ""
	s.state = StateClosed
}

// String never includes the credential.
func (s *Session) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("session %s (%s, credential %s)", s.id, s.state, logging.Redact(s.credential))
}
