package sequencer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/flowfact-console/internal/backend"
	"github.com/JakeFAU/flowfact-console/internal/config"
	"github.com/JakeFAU/flowfact-console/internal/progress"
	"github.com/JakeFAU/flowfact-console/internal/session"
)

var (
	// ErrNotVerified is returned when an operation is requested for a session
	// whose credential has not been accepted by the backend.
	ErrNotVerified = errors.New("session credential has not been verified")
	// ErrUnknownOperation is returned by RunOne for names outside the catalog.
	ErrUnknownOperation = errors.New("unknown operation")
)

const malformedPayload = "malformed response: body is not valid JSON"

// Sequencer executes the operation catalog for verified sessions.
type Sequencer struct {
	invoker Invoker
	ops     []Operation
	policy  string
	decider Decider
	emitter progress.Emitter
	clock   Clock
	logger  *zap.Logger
}

// Option configures the Sequencer.
type Option func(*Sequencer)

// WithDecider sets the Decider used by the ask policy.
func WithDecider(d Decider) Option {
	return func(s *Sequencer) {
		s.decider = d
	}
}

// WithEmitter sets the progress emitter.
func WithEmitter(e progress.Emitter) Option {
	return func(s *Sequencer) {
		s.emitter = e
	}
}

// WithClock sets the clock.
func WithClock(c Clock) Option {
	return func(s *Sequencer) {
		s.clock = c
	}
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sequencer) {
		s.logger = l
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// New builds a Sequencer over ops with the given failure policy.
func New(invoker Invoker, ops []Operation, policy string, opts ...Option) (*Sequencer, error) {
	if invoker == nil {
		return nil, errors.New("sequencer requires an invoker")
	}
	if err := config.ValidatePolicy(policy); err != nil {
		return nil, err
	}
	s := &Sequencer{
		invoker: invoker,
		ops:     append([]Operation(nil), ops...),
		policy:  policy,
		emitter: progress.NopEmitter{},
		clock:   wallClock{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.emitter == nil {
		s.emitter = progress.NopEmitter{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// WithFailurePolicy returns a copy of s using a different failure policy.
func (s *Sequencer) WithFailurePolicy(policy string) (*Sequencer, error) {
	if err := config.ValidatePolicy(policy); err != nil {
		return nil, err
	}
	cp := *s
	cp.policy = policy
	return &cp, nil
}

// Policy returns the configured failure policy.
func (s *Sequencer) Policy() string {
	return s.policy
}

// Operations returns the catalog in execution order.
func (s *Sequencer) Operations() []Operation {
	return append([]Operation(nil), s.ops...)
}

// Lookup finds an operation by name.
func (s *Sequencer) Lookup(name string) (Operation, bool) {
	for _, op := range s.ops {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// Run executes every operation in order and returns one Result per operation.
// obs may be nil.
func (s *Sequencer) Run(ctx context.Context, sess *session.Session, obs Observer) ([]Result, error) {
	if !sess.Verified() {
		return nil, ErrNotVerified
	}
	if obs == nil {
		obs = NopObserver{}
	}
	results := make([]Result, 0, len(s.ops))
	for i, op := range s.ops {
		if ctx.Err() != nil {
			return append(results, s.skip(sess, s.ops[i:], obs, "session canceled")...), nil
		}
		res := s.execute(ctx, sess, op, obs)
		results = append(results, res)
		if !res.Failed() || i == len(s.ops)-1 || ctx.Err() != nil {
			continue
		}
		if !s.shouldContinue(ctx, res, s.ops[i+1:]) {
			s.logger.Info("stopping sequence after failure",
				zap.Stringer("session_id", sess.ID()),
				zap.String("operation", op.Name),
				zap.String("policy", s.policy),
			)
			return append(results, s.skip(sess, s.ops[i+1:], obs, "skipped after "+op.Name+" failed")...), nil
		}
	}
	return results, nil
}

// RunOne executes a single named operation.
func (s *Sequencer) RunOne(ctx context.Context, sess *session.Session, name string, obs Observer) (Result, error) {
	if !sess.Verified() {
		return Result{}, ErrNotVerified
	}
	op, ok := s.Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	if obs == nil {
		obs = NopObserver{}
	}
	return s.execute(ctx, sess, op, obs), nil
}

func (s *Sequencer) shouldContinue(ctx context.Context, failed Result, remaining []Operation) bool {
	switch s.policy {
	case config.PolicyContinue:
		return true
	case config.PolicyAsk:
		if s.decider == nil {
			return false
		}
		return s.decider.ContinueAfter(ctx, failed, remaining)
	default:
		return false
	}
}

func (s *Sequencer) execute(ctx context.Context, sess *session.Session, op Operation, obs Observer) Result {
	started := s.clock.Now()
	obs.Started(op)
	s.emit(sess, progress.Event{TS: started, Stage: progress.StageOpStart, Operation: op.Name})

	resp, err := s.invoker.Do(ctx, backend.Call{
		Method:         op.Method,
		Path:           op.Path,
		Credential:     sess.Credential(),
		SendCredential: op.SendCredential,
		Timeout:        op.Timeout,
	})
	res := classify(op, resp, err)
	res.StartedAt = started
	res.Duration = s.clock.Now().Sub(started)
	if res.Duration < 0 {
		res.Duration = 0
	}

	evt := progress.Event{
		TS:          s.clock.Now(),
		Operation:   op.Name,
		StatusCode:  res.StatusCode,
		StatusClass: progress.ClassifyStatus(res.StatusCode),
		Bytes:       int64(len(resp.Body)),
		Dur:         res.Duration,
	}
	if res.Failed() {
		evt.Stage = progress.StageOpError
		evt.Note = res.Reason
		s.logger.Warn("operation failed",
			zap.Stringer("session_id", sess.ID()),
			zap.String("operation", op.Name),
			zap.String("kind", string(res.Kind)),
			zap.String("reason", res.Reason),
		)
	} else {
		evt.Stage = progress.StageOpDone
	}
	s.emit(sess, evt)
	obs.Finished(op, res)
	return res
}

func (s *Sequencer) skip(sess *session.Session, ops []Operation, obs Observer, why string) []Result {
	out := make([]Result, 0, len(ops))
	for _, op := range ops {
		res := Result{
			Operation: op.Name,
			Outcome:   OutcomeSkipped,
			Reason:    why,
			Message:   "Skipped: " + why,
			StartedAt: s.clock.Now(),
		}
		s.emit(sess, progress.Event{TS: res.StartedAt, Stage: progress.StageOpSkipped, Operation: op.Name, Note: why})
		obs.Finished(op, res)
		out = append(out, res)
	}
	return out
}

func (s *Sequencer) emit(sess *session.Session, evt progress.Event) {
	evt.SessionID = progress.UUIDToBytes(sess.ID())
	s.emitter.Emit(evt)
}

// classify converts a raw exchange into a Result.
func classify(op Operation, resp backend.Response, err error) Result {
	res := Result{Operation: op.Name}
	switch {
	case err != nil:
		res.Outcome = OutcomeFailure
		res.Kind = FailureTransport
		res.Reason = err.Error()
		res.Message = "Error: " + res.Reason
	case resp.StatusCode != http.StatusOK:
		res.Outcome = OutcomeFailure
		res.Kind = FailureStatus
		res.StatusCode = resp.StatusCode
		res.Reason = strconv.Itoa(resp.StatusCode)
		res.Message = fmt.Sprintf("Failed to %s. Status code: %d", op.Action, resp.StatusCode)
	case len(bytes.TrimSpace(resp.Body)) == 0:
		res.Outcome = OutcomeSuccess
		res.StatusCode = resp.StatusCode
		res.Message = op.SuccessMessage
	case !validPayload(resp.Body):
		res.Outcome = OutcomeFailure
		res.Kind = FailureTransport
		res.StatusCode = resp.StatusCode
		res.Reason = malformedPayload
		res.Message = "Error: " + malformedPayload
	default:
		res.Outcome = OutcomeSuccessPayload
		res.StatusCode = resp.StatusCode
		res.Payload = append([]byte(nil), resp.Body...)
		res.Message = op.SuccessMessage
	}
	return res
}
