package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/ecovest/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, container, jobs, log, err := wire(cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			log.Info().Str("version", version).Msg("Starting ecovest")
			server.Version = version

			srv := server.New(server.Config{
				Log:       log,
				Port:      cfg.Port,
				DevMode:   cfg.DevMode,
				ModelDir:  cfg.ModelDir,
				Origins:   cfg.CORSOrigins,
				Container: container,
				Jobs:      jobs,
			})

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			container.Scheduler.Start()

			// Wait for interrupt signal or a failed listener
			select {
			case <-cmd.Context().Done():
				log.Info().Msg("Shutting down server...")
			case err := <-serverErr:
				log.Error().Err(err).Msg("HTTP server failed")
				container.Scheduler.Stop()
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			shutdownErr := srv.Shutdown(ctx)

			// No request can start a job now; wait for scheduled and manual runs
			// before the database closes.
			container.Scheduler.Stop()

			if shutdownErr != nil {
				log.Error().Err(shutdownErr).Msg("Server forced to shutdown")
				return shutdownErr
			}

			log.Info().Msg("Server stopped")
			return nil
		},
	}
}
