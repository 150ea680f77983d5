package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/flowfact-console/internal/api"
	"github.com/JakeFAU/flowfact-console/internal/policy/ratelimit"
)

const serveCmdName = "serve"

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   serveCmdName,
		Short: "Expose the gate and the pipeline over HTTP",
		Long: `Starts an HTTP server with POST /v1/sessions and POST /v1/operations/{name}.
The ask failure policy needs a terminal, so it behaves like stop here.`,
		RunE: c.runServe,
	}
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	a := c.app
	cfg := a.GetConfig()
	logger := a.GetLogger().Named("api")

	seq, err := a.GetSequencer().WithFailurePolicy(api.DefaultPolicy(cfg.Sequencer.OnFailure))
	if err != nil {
		return fmt.Errorf("server failure policy: %w", err)
	}
	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Server.RateLimitRPS, Burst: cfg.Server.RateLimitBurst})
	server := api.NewServer(a.GetGate(), seq, a.GetIDGenerator(), a.GetClock(), a.GetEmitter(), logger,
		api.WithRateLimiter(limiter))

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return serve(cmd.Context(), ln, server.Handler(), logger)
}

// serve runs the HTTP server on ln until ctx is canceled, then shuts it down.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
