// Package main is the entry point for ecovest, the environmental impact
// engine behind the investment platform.
//
// Commands:
//   - serve: HTTP API plus the background scheduler
//   - retrain: train and persist a fresh model bundle
//   - estimate: one-off impact estimate from the command line
//   - refresh-metrics: recompute every initiative's per-1000 rates
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/ecovest/internal/config"
	"github.com/aristath/ecovest/internal/di"
	"github.com/aristath/ecovest/pkg/logger"
)

var (
	version = "dev"
	rootCmd = &cobra.Command{
		Use:           "ecovest",
		Short:         "Environmental impact estimation for sustainable investments",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().Bool("pretty", true, "human-readable log output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(retrainCmd())
	rootCmd.AddCommand(estimateCmd())
	rootCmd.AddCommand(refreshMetricsCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the root logger. Logs go to stderr so
// command output on stdout stays clean.
func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}

	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	pretty, _ := cmd.Flags().GetBool("pretty")

	log := logger.New(logger.Config{
		Level:  level,
		Pretty: pretty,
		Output: cmd.ErrOrStderr(),
	})
	logger.SetGlobalLogger(log)
	return cfg, log, nil
}

// wire loads configuration and builds the dependency container.
func wire(cmd *cobra.Command) (*config.Config, *di.Container, *di.JobInstances, zerolog.Logger, error) {
	cfg, log, err := setup(cmd)
	if err != nil {
		return nil, nil, nil, log, err
	}

	container, jobs, err := di.Wire(cmd.Context(), cfg, log)
	if err != nil {
		return nil, nil, nil, log, fmt.Errorf("failed to wire dependencies: %w", err)
	}
	return cfg, container, jobs, log, nil
}
