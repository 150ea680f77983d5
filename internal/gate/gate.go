// Package gate exchanges a user-supplied credential with the backend for a
// verified / not-verified verdict.
package gate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/flowfact-console/internal/backend"
	"github.com/JakeFAU/flowfact-console/internal/progress"
	"github.com/JakeFAU/flowfact-console/internal/session"
)

// User-facing verdict messages.
const (
	MessageVerified = "API Key authenticated successfully!"
	MessageRejected = "Authentication failed. Please check your API Key."
)

// Authenticator performs the remote credential check.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string, timeout time.Duration) (backend.Response, error)
}

// Verdict is the gate's answer. Submitted is false when the credential was
// empty and nothing was sent; Verified is then false too.
type Verdict struct {
	Submitted  bool
	Verified   bool
	StatusCode int
	// Diagnostic is the message shown to the user, including transport errors.
	Diagnostic string
}

// Gate verifies credentials.
type Gate struct {
	auth    Authenticator
	timeout time.Duration
	emitter progress.Emitter
	now     func() time.Time
	logger  *zap.Logger
}

// New builds a Gate. timeout bounds each authentication call; zero disables it.
func New(auth Authenticator, timeout time.Duration, emitter progress.Emitter, logger *zap.Logger) *Gate {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		auth:    auth,
		timeout: timeout,
		emitter: emitter,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// Verify submits credential to sess and, if non-empty, asks the backend
// whether it is valid. Only HTTP 200 verifies. Transport failures collapse to
// a negative verdict with the error text as diagnostic.
func (g *Gate) Verify(ctx context.Context, sess *session.Session, credential string) Verdict {
	if !sess.Submit(credential) {
		return Verdict{}
	}

	start := g.now()
	resp, err := g.auth.Authenticate(ctx, sess.Credential(), g.timeout)
	elapsed := g.now().Sub(start)
	evt := progress.Event{
		SessionID: progress.UUIDToBytes(sess.ID()),
		TS:        g.now(),
		Dur:       max(elapsed, 0),
	}

	if err != nil {
		sess.MarkVerified(false)
		evt.Stage = progress.StageAuthError
		evt.StatusClass = progress.StatusTransport
		evt.Note = err.Error()
		g.emitter.Emit(evt)
		g.logger.Warn("credential check failed", zap.Stringer("session_id", sess.ID()), zap.Error(err))
		return Verdict{Submitted: true, Diagnostic: "Error: " + err.Error()}
	}

	verified := resp.StatusCode == http.StatusOK
	sess.MarkVerified(verified)
	evt.Stage = progress.StageAuthDone
	evt.StatusCode = resp.StatusCode
	evt.StatusClass = progress.ClassifyStatus(resp.StatusCode)
	g.emitter.Emit(evt)

	if verified {
		g.logger.Info("credential verified", zap.Stringer("session_id", sess.ID()))
		return Verdict{Submitted: true, Verified: true, StatusCode: resp.StatusCode, Diagnostic: MessageVerified}
	}
	g.logger.Info("credential rejected", zap.Stringer("session_id", sess.ID()), zap.Int("status", resp.StatusCode))
	return Verdict{
		Submitted:  true,
		StatusCode: resp.StatusCode,
		Diagnostic: fmt.Sprintf("%s (status code %d)", MessageRejected, resp.StatusCode),
	}
}
