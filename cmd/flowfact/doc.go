// Package main hosts the flowfact entrypoint.
//
// Architecture overview:
//   - Credential gate: internal/gate posts the operator's API key to the backend's /authenticate/ endpoint and turns
//     the answer into a verified / not-verified verdict. Nothing else runs until a session is verified.
//   - Operation sequencer: internal/sequencer runs fetch_data, validate_images, prepare_dataset and
//     start_batch_processing strictly one after another, each with its own timeout, and reports a result per step.
//     What happens after a failure is the configured failure policy (continue, stop or ask).
//   - Surfaces: the console subcommand (default) reads a masked key from the terminal and renders results; the serve
//     subcommand exposes the same flow over HTTP for automation.
//   - Plumbing: Viper loads config from a YAML file, a .env file and FLOWFACT_* env vars; zap writes structured logs to
//     stderr; a progress hub fans session events out to the log and to Prometheus.
//
// Quick checklist:
//   - Set FLOWFACT_SEQUENCER_ON_FAILURE (continue, stop or ask); there is no default.
//   - Point FLOWFACT_BACKEND_BASE_URL at the backend (default http://localhost:8000/flowfact).
//   - Run locally: go run ./cmd/flowfact --config config.yaml, or go run ./cmd/flowfact serve.
package main
