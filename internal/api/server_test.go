package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/flowfact-console/internal/backend"
	"github.com/JakeFAU/flowfact-console/internal/config"
	"github.com/JakeFAU/flowfact-console/internal/gate"
	"github.com/JakeFAU/flowfact-console/internal/policy/ratelimit"
	"github.com/JakeFAU/flowfact-console/internal/progress"
	"github.com/JakeFAU/flowfact-console/internal/sequencer"
)

type fakeAuth struct {
	mu    sync.Mutex
	calls int
}

func (a *fakeAuth) Authenticate(_ context.Context, credential string, _ time.Duration) (backend.Response, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if credential == "abc123" {
		return backend.Response{StatusCode: http.StatusOK}, nil
	}
	return backend.Response{StatusCode: http.StatusForbidden}, nil
}

func (a *fakeAuth) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeInvoker struct {
	mu        sync.Mutex
	paths     []string
	fetchBody string
}

func (f *fakeInvoker) Do(_ context.Context, call backend.Call) (backend.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, call.Path)
	switch call.Path {
	case "/fetch-data/":
		body := `{"count": 5}`
		if f.fetchBody != "" {
			body = f.fetchBody
		}
		return backend.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
	case "/validate-images/":
		return backend.Response{StatusCode: http.StatusServiceUnavailable}, nil
	default:
		return backend.Response{StatusCode: http.StatusOK}, nil
	}
}

func (f *fakeInvoker) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

type fakeIDGen struct{}

func (fakeIDGen) NewSessionID() (uuid.UUID, error) { return uuid.NewV7() }

type fakeClock struct{}

func (fakeClock) Now() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

type countingEmitter struct {
	mu     sync.Mutex
	stages map[progress.Stage]int
}

func (c *countingEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stages == nil {
		c.stages = map[progress.Stage]int{}
	}
	c.stages[evt.Stage]++
}

type testServer struct {
	server  *Server
	auth    *fakeAuth
	invoker *fakeInvoker
	events  *countingEmitter
}

func newTestServer(t *testing.T, policy string) testServer {
	t.Helper()
	auth := &fakeAuth{}
	inv := &fakeInvoker{}
	events := &countingEmitter{}
	ops := sequencer.Catalog(map[string]config.OperationConfig{
		config.OpFetchData:            {Timeout: time.Second, SendCredential: true},
		config.OpValidateImages:       {Timeout: time.Second, SendCredential: true},
		config.OpPrepareDataset:       {Timeout: time.Second, SendCredential: true},
		config.OpStartBatchProcessing: {Timeout: time.Second, SendCredential: true},
	})
	seq, err := sequencer.New(inv, ops, DefaultPolicy(policy))
	require.NoError(t, err)
	srv := NewServer(gate.New(auth, time.Second, nil, nil), seq, fakeIDGen{}, fakeClock{}, events, zap.NewNop())
	return testServer{server: srv, auth: auth, invoker: inv, events: events}
}

func (ts testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.PolicyContinue)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.PolicyContinue)
	ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_RunSession_Continue(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.PolicyContinue)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewBufferString(`{"api_key":"abc123"}`))
	rec := ts.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Verified)
	require.Equal(t, config.PolicyContinue, body.Policy)
	require.True(t, body.StartedAt.Equal(fakeClock{}.Now()))
	require.Len(t, body.Results, 4)
	require.Equal(t, sequencer.OutcomeSuccessPayload, body.Results[0].Outcome)
	require.JSONEq(t, `{"count": 5}`, string(body.Results[0].Payload))
	require.Equal(t, sequencer.OutcomeFailure, body.Results[1].Outcome)
	require.Equal(t, "503", body.Results[1].Reason)
	require.Equal(t, sequencer.OutcomeSuccess, body.Results[2].Outcome)
	require.Len(t, ts.invoker.Paths(), 4)
	require.NotContains(t, rec.Body.String(), "abc123")

	require.Equal(t, 1, ts.events.stages[progress.StageSessionStart])
	require.Equal(t, 1, ts.events.stages[progress.StageSessionDone])
}

func TestServer_RunSession_TrailingPayloadData(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.PolicyContinue)
	ts.invoker.fetchBody = `{"count": 5} trailing`
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewBufferString(`{"api_key":"abc123"}`))
	rec := ts.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, json.Valid(rec.Body.Bytes()), rec.Body.String())
	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, sequencer.OutcomeFailure, body.Results[0].Outcome)
	require.Equal(t, sequencer.FailureTransport, body.Results[0].Kind)
	require.Empty(t, body.Results[0].Payload)
	require.Len(t, body.Results, 4)
}

func TestServer_RunSession_PolicyOverride(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.PolicyContinue)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions",
		bytes.NewBufferString(`{"api_key":"abc123","on_failure":"ask"}`))
	rec := ts.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, config.PolicyStop, body.Policy)
	require.Equal(t, sequencer.OutcomeSkipped, body.Results[2].Outcome)
	require.Equal(t, []string{"/fetch-data/", "/validate-images/"}, ts.invoker.Paths())
}

func TestServer_RunSession_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "invalid json", body: "{oops", want: "invalid JSON"},
		{name: "empty key", body: `{"api_key":"   "}`, want: "api_key required"},
		{name: "unknown policy", body: `{"api_key":"abc123","on_failure":"retry"}`, want: "failure policy"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t, config.PolicyStop)
			rec := ts.do(httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(tt.body)))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tt.want)
			require.Zero(t, ts.auth.Calls(), "nothing is sent upstream")
		})
	}
}

func TestServer_RunSession_Rejected(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.PolicyStop)
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"api_key":"nope"}`)))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), gate.MessageRejected)
	require.Contains(t, rec.Body.String(), `"status_code":403`)
	require.Empty(t, ts.invoker.Paths())
	require.Equal(t, 1, ts.events.stages[progress.StageSessionDone])
}

func TestServer_RunOperation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.PolicyStop)
	req := httptest.NewRequest(http.MethodPost, "/v1/operations/"+config.OpFetchData, nil)
	req.Header.Set(APIKeyHeader, "abc123")
	rec := ts.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body operationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, config.OpFetchData, body.Result.Operation)
	require.Equal(t, sequencer.OutcomeSuccessPayload, body.Result.Outcome)
	require.True(t, body.StartedAt.Equal(fakeClock{}.Now()))
	require.Equal(t, []string{"/fetch-data/"}, ts.invoker.Paths())
}

func TestServer_RunOperation_Errors(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.PolicyStop)

	req := httptest.NewRequest(http.MethodPost, "/v1/operations/reticulate", nil)
	req.Header.Set(APIKeyHeader, "abc123")
	require.Equal(t, http.StatusNotFound, ts.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/operations/"+config.OpPrepareDataset, nil)
	require.Equal(t, http.StatusUnauthorized, ts.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/operations/"+config.OpPrepareDataset, nil)
	req.Header.Set(APIKeyHeader, "wrong")
	require.Equal(t, http.StatusUnauthorized, ts.do(req).Code)

	require.Equal(t, 1, ts.auth.Calls())
	require.Empty(t, ts.invoker.Paths())
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDefaultPolicy(t *testing.T) {
	t.Parallel()

	require.Equal(t, config.PolicyStop, DefaultPolicy(config.PolicyAsk))
	require.Equal(t, config.PolicyContinue, DefaultPolicy(config.PolicyContinue))
	require.Equal(t, config.PolicyStop, DefaultPolicy(config.PolicyStop))
}

func TestServer_RateLimit(t *testing.T) {
	t.Parallel()

	auth := &fakeAuth{}
	seq, err := sequencer.New(&fakeInvoker{}, nil, config.PolicyStop)
	require.NoError(t, err)
	srv := NewServer(gate.New(auth, time.Second, nil, nil), seq, fakeIDGen{}, fakeClock{}, nil, nil,
		WithRateLimiter(ratelimit.New(ratelimit.Config{RPS: 0.001, Burst: 1})))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"api_key":"nope"}`))
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, send("192.0.2.1:1234"))
	require.Equal(t, http.StatusTooManyRequests, send("192.0.2.1:5678"))
	require.Equal(t, http.StatusUnauthorized, send("192.0.2.2:1234"))
	require.Equal(t, 2, auth.Calls())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code, "health checks are never throttled")
}
