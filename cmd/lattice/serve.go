package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/presentation/tui"
	httpAdapter "github.com/aretw0/lattice/pkg/adapters/http"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP bridge",
	Long: `Serves the JSON API, the SSE and WebSocket sync channels and Prometheus
metrics. Open sessions are flushed to the store on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		port := a.cfg.HTTP.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(reg)
		hooks := metrics.Hooks().Merge(observability.LogHooks(a.logger))

		studio, err := a.studio(lattice.WithLifecycleHooks(hooks))
		if err != nil {
			_ = a.Close()
			return err
		}

		handler, err := httpAdapter.NewHandler(studio,
			httpAdapter.WithLogger(a.logger),
			httpAdapter.WithGatherer(reg),
		)
		if err != nil {
			_ = shutdown(context.Background(), studio, a)
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			tui.PrintBanner(cmd.ErrOrStderr())
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			a.logger.Info("lattice server listening", "address", srv.Addr, "store", a.cfg.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a.watchPalette(ctx)

		select {
		case err := <-serverErrors:
			_ = shutdown(context.Background(), studio, a)
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			a.logger.Info("shutdown signal received")
		}

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("graceful shutdown did not complete", "err", err)
			_ = srv.Close()
		}
		if err := shutdown(shutdownCtx, studio, a); err != nil {
			return fmt.Errorf("failed to flush sessions: %w", err)
		}
		a.logger.Info("lattice server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides http.port)")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
