// Package progress provides the event primitives and the non-blocking hub the
// gate and sequencer use to report session milestones. Events are batched on a
// background goroutine and fanned out to pluggable sinks such as structured
// logs or Prometheus metrics. Reporting never delays an operation.
package progress
