package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/JakeFAU/flowfact-console/internal/config"
	"github.com/JakeFAU/flowfact-console/internal/gate"
	"github.com/JakeFAU/flowfact-console/internal/metrics"
	"github.com/JakeFAU/flowfact-console/internal/policy/ratelimit"
	"github.com/JakeFAU/flowfact-console/internal/progress"
	"github.com/JakeFAU/flowfact-console/internal/sequencer"
	"github.com/JakeFAU/flowfact-console/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// APIKeyHeader carries the credential for single-operation requests.
const APIKeyHeader = "X-API-Key"

// Verifier is the credential gate.
type Verifier interface {
	Verify(ctx context.Context, sess *session.Session, credential string) gate.Verdict
}

// IDGenerator creates session identifiers.
type IDGenerator interface {
	NewSessionID() (uuid.UUID, error)
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// Server wires HTTP handlers to the gate and the sequencer.
type Server struct {
	router   chi.Router
	verifier Verifier
	seq      *sequencer.Sequencer
	idGen    IDGenerator
	clock    Clock
	emitter  progress.Emitter
	limiter  *ratelimit.Limiter
	logger   *zap.Logger
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithRateLimiter throttles /v1 requests per client address.
func WithRateLimiter(l *ratelimit.Limiter) ServerOption {
	return func(s *Server) {
		s.limiter = l
	}
}

// NewServer constructs a Server with middleware and routes. Requests have no
// server-side deadline; every backend call carries its own timeout.
func NewServer(
	verifier Verifier,
	seq *sequencer.Sequencer,
	idGen IDGenerator,
	clock Clock,
	emitter progress.Emitter,
	logger *zap.Logger,
	opts ...ServerOption,
) *Server {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		verifier: verifier,
		seq:      seq,
		idGen:    idGen,
		clock:    clock,
		emitter:  emitter,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(rateLimitMiddleware(s.limiter, logger))
		}
		r.Post("/sessions", s.runSession)
		r.Post("/operations/{name}", s.runOperation)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type sessionRequest struct {
	APIKey    string `json:"api_key"`
	OnFailure string `json:"on_failure"`
}

type sessionResponse struct {
	SessionID string             `json:"session_id"`
	StartedAt time.Time          `json:"started_at"`
	Verified  bool               `json:"verified"`
	Policy    string             `json:"on_failure"`
	Results   []sequencer.Result `json:"results"`
}

type operationResponse struct {
	SessionID string           `json:"session_id"`
	StartedAt time.Time        `json:"started_at"`
	Result    sequencer.Result `json:"result"`
}

type rejectionResponse struct {
	Error      string `json:"error"`
	SessionID  string `json:"session_id"`
	StatusCode int    `json:"status_code,omitempty"`
}

func (s *Server) runSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		writeError(w, http.StatusBadRequest, "api_key required")
		return
	}
	seq := s.seq
	if req.OnFailure != "" {
		var err error
		if seq, err = s.seq.WithFailurePolicy(DefaultPolicy(req.OnFailure)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	sess, ok := s.openSession(w, r, req.APIKey)
	if !ok {
		return
	}
	defer s.closeSession(sess)

	results, err := seq.Run(r.Context(), sess, nil)
	if err != nil {
		s.logger.Error("sequence failed", zap.Stringer("session_id", sess.ID()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "sequence failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sess.ID().String(),
		StartedAt: sess.StartedAt(),
		Verified:  true,
		Policy:    seq.Policy(),
		Results:   results,
	})
}

func (s *Server) runOperation(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.seq.Lookup(name); !ok {
		writeError(w, http.StatusNotFound, "unknown operation "+name)
		return
	}
	key := r.Header.Get(APIKeyHeader)
	if strings.TrimSpace(key) == "" {
		writeError(w, http.StatusUnauthorized, "missing "+APIKeyHeader+" header")
		return
	}

	sess, ok := s.openSession(w, r, key)
	if !ok {
		return
	}
	defer s.closeSession(sess)

	res, err := s.seq.RunOne(r.Context(), sess, name, nil)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sequencer.ErrUnknownOperation) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, operationResponse{
		SessionID: sess.ID().String(),
		StartedAt: sess.StartedAt(),
		Result:    res,
	})
}

// openSession creates a session and verifies key. On failure it writes the
// response and returns false.
func (s *Server) openSession(w http.ResponseWriter, r *http.Request, key string) (*session.Session, bool) {
	id, err := s.idGen.NewSessionID()
	if err != nil {
		s.logger.Error("session id generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return nil, false
	}
	sess := session.New(id, s.clock.Now())
	s.emit(sess, progress.StageSessionStart)

	verdict := s.verifier.Verify(r.Context(), sess, key)
	if !verdict.Verified {
		s.closeSession(sess)
		writeJSON(w, http.StatusUnauthorized, rejectionResponse{
			Error:      verdict.Diagnostic,
			SessionID:  id.String(),
			StatusCode: verdict.StatusCode,
		})
		return nil, false
	}
	return sess, true
}

func (s *Server) closeSession(sess *session.Session) {
	sess.Close()
	s.emit(sess, progress.StageSessionDone)
}

func (s *Server) emit(sess *session.Session, stage progress.Stage) {
	s.emitter.Emit(progress.Event{
		SessionID: progress.UUIDToBytes(sess.ID()),
		TS:        s.clock.Now(),
		Stage:     stage,
	})
}

// DefaultPolicy picks the failure policy for remote sessions from the
// configured one. ask needs a terminal, so it falls back to stop.
func DefaultPolicy(configured string) string {
	if configured == config.PolicyAsk {
		return config.PolicyStop
	}
	return configured
}
