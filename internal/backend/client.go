// Package backend is the HTTP client for the remote flowfact service. Every
// call is a single request bounded by its own timeout; the client never
// retries and never caches.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/JakeFAU/flowfact-console/internal/config"
	"github.com/JakeFAU/flowfact-console/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// AuthenticatePath is the credential verification endpoint.
	AuthenticatePath = "/authenticate/"
	// CredentialParam is the query parameter carrying the credential.
	CredentialParam = "api_key"

	// DefaultMaxBodyBytes caps response bodies unless WithMaxBodyBytes overrides it.
	DefaultMaxBodyBytes int64 = 32 << 20

	redactedValue = "REDACTED"
)

// ErrBodyTooLarge reports a response body over the client's size limit.
var ErrBodyTooLarge = errors.New("response body too large")

// Call describes one outbound request.
type Call struct {
	Method string
	Path   string
	// Credential is attached according to the client's transport when SendCredential is set.
	Credential     string
	SendCredential bool
	// Timeout bounds the whole exchange. Zero disables the deadline.
	Timeout time.Duration
	// JSONBody, when non-nil, is encoded as the request body.
	JSONBody any
}

// Response is the raw outcome of a completed HTTP exchange.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client issues calls against a single base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	transport  string
	maxBody    int64
	logger     *zap.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCredentialTransport selects query-parameter or header credential placement.
func WithCredentialTransport(transport string) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithMaxBodyBytes limits how many response bytes are read. Non-positive
// values keep DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// NewClient builds a Client for baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: newHTTPTransport()},
		transport:  config.TransportQuery,
		maxBody:    DefaultMaxBodyBytes,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	switch c.transport {
	case config.TransportQuery, config.TransportHeader:
	default:
		return nil, fmt.Errorf("unknown credential transport %q", c.transport)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticate posts the credential as {"api_key": ...} to the verification endpoint.
func (c *Client) Authenticate(ctx context.Context, credential string, timeout time.Duration) (Response, error) {
	return c.Do(ctx, Call{
		Method:   http.MethodPost,
		Path:     AuthenticatePath,
		Timeout:  timeout,
		JSONBody: map[string]string{CredentialParam: credential},
	})
}

// Do executes a single call. Non-2xx statuses are not errors; only transport
// failures (dial, timeout, unreadable or oversized body) are returned as errors.
func (c *Client) Do(ctx context.Context, call Call) (Response, error) {
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, call)
	if err != nil {
		return Response{}, err
	}

	start := time.Now()
	metrics.IncBackendInFlight()
	resp, err := c.httpClient.Do(req)
	metrics.DecBackendInFlight()
	if err != nil {
		metrics.ObserveBackendCall(call.Path, 0, time.Since(start))
		c.logger.Debug("backend call failed",
			zap.String("method", call.Method),
			zap.String("endpoint", call.Path),
			zap.Duration("timeout", call.Timeout),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(redactError(err)),
		)
		return Response{}, fmt.Errorf("%s %s: %w", call.Method, call.Path, redactError(err))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.String("endpoint", call.Path), zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	metrics.ObserveBackendCall(call.Path, resp.StatusCode, time.Since(start))
	if err != nil {
		return Response{}, fmt.Errorf("read %s response: %w", call.Path, redactError(err))
	}
	if int64(len(body)) > c.maxBody {
		c.logger.Debug("backend response over limit",
			zap.String("endpoint", call.Path),
			zap.Int64("limit", c.maxBody),
		)
		return Response{}, fmt.Errorf("read %s response: %w (limit %d bytes)", call.Path, ErrBodyTooLarge, c.maxBody)
	}
	c.logger.Debug("backend call completed",
		zap.String("method", call.Method),
		zap.String("endpoint", call.Path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) newRequest(ctx context.Context, call Call) (*http.Request, error) {
	target, err := url.Parse(c.baseURL + call.Path)
	if err != nil {
		return nil, fmt.Errorf("build url for %s: %w", call.Path, err)
	}
	attach := call.SendCredential && call.Credential != ""
	if attach && c.transport == config.TransportQuery {
		q := target.Query()
		q.Set(CredentialParam, call.Credential)
		target.RawQuery = q.Encode()
	}

	var body io.Reader
	if call.JSONBody != nil {
		payload, err := json.Marshal(call.JSONBody)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", call.Path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", call.Path, err)
	}
	req.Header.Set("Accept", "application/json")
	if call.JSONBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if attach && c.transport == config.TransportHeader {
		req.Header.Set("Authorization", "Bearer "+call.Credential)
	}
	return req, nil
}

// redactError strips the credential query parameter from URLs embedded in
// net/http errors so diagnostics can be shown to the user.
func redactError(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	u, perr := url.Parse(urlErr.URL)
	if perr != nil {
		return err
	}
	q := u.Query()
	if !q.Has(CredentialParam) {
		return err
	}
	q.Set(CredentialParam, redactedValue)
	u.RawQuery = q.Encode()
	return &url.Error{Op: urlErr.Op, URL: u.String(), Err: urlErr.Err}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
