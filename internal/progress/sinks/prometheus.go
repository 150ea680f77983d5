package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/flowfact-console/internal/progress"
)

// PrometheusSink exports session, authentication and operation outcomes.
type PrometheusSink struct {
	sessionsStarted prometheus.Counter
	sessionsRunning prometheus.Gauge
	authVerdicts    *prometheus.CounterVec

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	payloadBytes      *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowfact_sessions_started_total",
			Help: "Total sessions started.",
		}),
		sessionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowfact_sessions_running",
			Help: "Sessions started but not yet finished.",
		}),
		authVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowfact_auth_verdicts_total",
			Help: "Credential verdicts partitioned by result (verified, rejected, error).",
		}, []string{"result"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowfact_operations_total",
			Help: "Operation outcomes partitioned by operation and result.",
		}, []string{"operation", "result"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowfact_operation_duration_seconds",
			Help:    "Operation wall time partitioned by operation.",
			Buckets: []float64{0.1, 1, 5, 30, 120, 600, 1800, 3600, 9000},
		}, []string{"operation"}),
		payloadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowfact_operation_payload_bytes_total",
			Help: "Response payload bytes received per operation.",
		}, []string{"operation"}),
	}
	for _, collector := range []prometheus.Collector{
		s.sessionsStarted,
		s.sessionsRunning,
		s.authVerdicts,
		s.operations,
		s.operationDuration,
		s.payloadBytes,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSessionStart:
		s.sessionsStarted.Inc()
		s.sessionsRunning.Inc()
	case progress.StageSessionDone:
		s.sessionsRunning.Dec()
	case progress.StageAuthDone:
		result := "rejected"
		if evt.StatusClass == progress.Status2xx {
			result = "verified"
		}
		s.authVerdicts.WithLabelValues(result).Inc()
	case progress.StageAuthError:
		s.authVerdicts.WithLabelValues("error").Inc()
	case progress.StageOpDone:
		s.observeOperation(evt, "success")
	case progress.StageOpError:
		s.observeOperation(evt, "failure")
	case progress.StageOpSkipped:
		s.operations.WithLabelValues(evt.Operation, "skipped").Inc()
	}
}

func (s *PrometheusSink) observeOperation(evt progress.Event, result string) {
	s.operations.WithLabelValues(evt.Operation, result).Inc()
	if evt.Dur > 0 {
		s.operationDuration.WithLabelValues(evt.Operation).Observe(evt.Dur.Seconds())
	}
	if evt.Bytes > 0 {
		s.payloadBytes.WithLabelValues(evt.Operation).Add(float64(evt.Bytes))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
