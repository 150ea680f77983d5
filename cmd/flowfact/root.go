package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/flowfact-console/internal/app"
	"github.com/JakeFAU/flowfact-console/internal/config"
	"github.com/JakeFAU/flowfact-console/internal/console"
	"github.com/JakeFAU/flowfact-console/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// cli carries state shared by the commands of one invocation.
type cli struct {
	cfgFile string
	app     *app.App
	logger  *zap.Logger
}

// Execute builds the command tree and runs it until ctx is canceled or the
// command returns.
func Execute(ctx context.Context) error {
	c := &cli{}
	defer c.teardown()
	return newRootCmd(c).ExecuteContext(ctx)
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowfact",
		Short: "Authenticate against the flowfact backend and run its processing pipeline.",
		Long: `flowfact collects an API key, verifies it with the backend and then triggers
the fixed pipeline: fetch data, validate images, prepare the dataset and start
batch processing. Without a subcommand it runs the interactive console.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		RunE:              c.runConsole,
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (YAML); FLOWFACT_* env vars override it")

	cmd.AddCommand(newConsoleCmd(c), newServeCmd(c))
	return cmd
}

// setup loads config and builds the application services before any
// subcommand runs.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	c.logger = logger

	var opts []app.Option
	if cmd.Name() != serveCmdName {
		opts = append(opts, app.WithDecider(console.NewPromptDecider(console.PromptConfirmer{}, logger)))
	}
	a, err := app.NewApp(cfg, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	c.app = a
	return nil
}

// teardown flushes progress events and the logger. It runs even when the
// command failed.
func (c *cli) teardown() {
	if c.app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := c.app.Close(ctx); err != nil {
			c.logger.Warn("error closing application services", zap.Error(err))
		}
		cancel()
	}
	if c.logger != nil {
		// Sync on a terminal stderr reports EINVAL on some platforms.
		_ = c.logger.Sync()
	}
}
