package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/stategraph/internal/cli"
	httpAdapter "github.com/aretw0/stategraph/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Serves every graph over a JSON API, streams run events over SSE on /events and exposes Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		streams := httpAdapter.NewStreamManager(nil)
		app, err := loadApp(cmd, cli.AppOptions{Hooks: streams.Hooks()})
		if err != nil {
			return err
		}
		defer app.Close(context.Background())

		addr := app.Config.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		srv := &http.Server{
			Addr: addr,
			Handler: httpAdapter.NewHandler(app.Catalog,
				httpAdapter.WithSessions(app.Sessions),
				httpAdapter.WithStreams(streams),
				httpAdapter.WithMetrics(app.Metrics.Handler()),
				httpAdapter.WithLogger(app.Logger),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("HTTP server listening", "address", addr, "graphs", app.Catalog.Names())
			serverErrors <- srv.ListenAndServe()
		}()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			app.Logger.Info("shutting down", "signal", ctx.Signal())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				app.Logger.Warn("graceful shutdown did not complete", "error", err)
				if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("close server: %w", err)
				}
			}
			app.Logger.Info("HTTP server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on (overrides http.addr)")
}
