// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/flowfact-console/internal/backend"
	"github.com/JakeFAU/flowfact-console/internal/clock/system"
	"github.com/JakeFAU/flowfact-console/internal/config"
	"github.com/JakeFAU/flowfact-console/internal/gate"
	"github.com/JakeFAU/flowfact-console/internal/id/uuid"
	"github.com/JakeFAU/flowfact-console/internal/progress"
	"github.com/JakeFAU/flowfact-console/internal/progress/sinks"
	"github.com/JakeFAU/flowfact-console/internal/sequencer"
)

// App holds the shared services for one process: the backend client, the
// credential gate, the operation sequencer and the progress hub feeding logs
// and metrics. It is built once at startup and closed on exit.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	hub       *progress.Hub
	client    *backend.Client
	gate      *gate.Gate
	sequencer *sequencer.Sequencer
	ids       *uuid.Generator
	clock     *system.Clock
}

// Option customizes NewApp.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	decider    sequencer.Decider
	backendOpt []backend.Option
}

// WithRegisterer sets where progress metrics are registered. Defaults to the
// global Prometheus registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithDecider sets the Decider consulted by the ask failure policy.
func WithDecider(d sequencer.Decider) Option {
	return func(o *options) {
		o.decider = d
	}
}

// WithBackendOptions passes extra options to the backend client.
func WithBackendOptions(opts ...backend.Option) Option {
	return func(o *options) {
		o.backendOpt = append(o.backendOpt, opts...)
	}
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the configuration the App was built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetEmitter returns the progress hub.
func (a *App) GetEmitter() progress.Emitter {
	return a.hub
}

// GetGate returns the credential gate.
func (a *App) GetGate() *gate.Gate {
	return a.gate
}

// GetSequencer returns the operation sequencer.
func (a *App) GetSequencer() *sequencer.Sequencer {
	return a.sequencer
}

// GetIDGenerator returns the session ID generator.
func (a *App) GetIDGenerator() *uuid.Generator {
	return a.ids
}

// GetClock returns the wall clock.
func (a *App) GetClock() *system.Clock {
	return a.clock
}

// NewApp builds every service from cfg. It fails fast when the backend client
// or the metrics sink cannot be created.
func NewApp(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	logger.Info("initializing application services")

	promSink, err := sinks.NewPrometheusSink(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)

	clientOpts := append([]backend.Option{
		backend.WithCredentialTransport(cfg.Backend.CredentialTransport),
		backend.WithMaxBodyBytes(cfg.Backend.MaxBodyBytes),
		backend.WithLogger(logger.Named("backend")),
	}, o.backendOpt...)
	client, err := backend.NewClient(cfg.Backend.BaseURL, clientOpts...)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init backend client: %w", err), hub.Close(context.Background()))
	}
	logger.Info("backend client ready", zap.String("backend", client.BaseURL()))

	clock := system.New()
	seqOpts := []sequencer.Option{
		sequencer.WithEmitter(hub),
		sequencer.WithClock(clock),
		sequencer.WithLogger(logger.Named("sequencer")),
	}
	if o.decider != nil {
		seqOpts = append(seqOpts, sequencer.WithDecider(o.decider))
	}
	seq, err := sequencer.New(client, sequencer.Catalog(cfg.Operations), cfg.Sequencer.OnFailure, seqOpts...)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init sequencer: %w", err), hub.Close(context.Background()))
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		hub:       hub,
		client:    client,
		gate:      gate.New(client, cfg.Backend.AuthTimeout, hub, logger.Named("gate")),
		sequencer: seq,
		ids:       uuid.New(),
		clock:     clock,
	}, nil
}

// Close flushes pending progress events.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("shutting down application services")
	if err := a.hub.Close(ctx); err != nil {
		return fmt.Errorf("close progress hub: %w", err)
	}
	return nil
}
