// Package api hosts the HTTP server, middleware, and REST handlers that expose
// the credential gate and operation sequence to remote callers. Routes:
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/sessions to verify a key and run the whole sequence.
//   - POST /v1/operations/{name} to verify a key and run one operation.
package api
