package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eduscan/markscan/internal/jobs"
	"github.com/eduscan/markscan/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for answer sheet processing",
	Long: `Start an HTTP server that accepts scanned answer sheets and processes
them asynchronously through a worker pool.

The server provides the following endpoints:
  POST /v1/omr/scans          - Upload a scan and create a processing job
  GET  /v1/omr/jobs/{id}       - Poll a job's status and result
  GET  /v1/omr/jobs/{id}/watch - Stream job updates over WebSocket
  POST /v1/omr/results         - Grade a completed job against an answer key
  GET  /v1/omr/templates       - List registered form templates
  GET  /health                 - Health check endpoint
  GET  /metrics                - Prometheus metrics

Examples:
  markscan serve
  markscan serve --port 8080
  markscan serve --host 0.0.0.0 --workers 4`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}
		workers := cfg.Jobs.Workers
		if cmd.Flags().Changed("workers") {
			workers, _ = cmd.Flags().GetInt("workers")
		}
		storePath := cfg.Jobs.StorePath
		if cmd.Flags().Changed("store") {
			storePath, _ = cmd.Flags().GetString("store")
		}
		shutdownTimeout, _ := cmd.Flags().GetInt("shutdown-timeout")

		pl, err := buildPipeline(cfg)
		if err != nil {
			return fmt.Errorf("failed to build pipeline: %w", err)
		}

		store, err := jobs.OpenStore(storePath)
		if err != nil {
			return fmt.Errorf("failed to open job store: %w", err)
		}
		defer func() { _ = store.Close() }()

		orch := jobs.NewOrchestrator(store, pl, jobs.OrchestratorConfig{
			Workers:   workers,
			QueueSize: cfg.Jobs.QueueSize,
			Timeout:   time.Duration(cfg.Jobs.TimeoutSec) * time.Second,
		})
		orch.Start()

		srv := server.New(server.Config{
			Host:        host,
			Port:        port,
			CORSOrigin:  cfg.Server.CORSOrigin,
			MaxUploadMB: cfg.Server.MaxUploadMB,
			UploadDir:   cfg.Server.UploadDir,
			TimeoutSec:  cfg.Server.TimeoutSec,
		}, orch, pl.Templates())

		mux := http.NewServeMux()
		srv.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(cfg.Server.TimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(cfg.Server.TimeoutSec) * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			slog.Info("Starting markscan server", "host", host, "port", port, "store", storePath)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErr <- err
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case err := <-serverErr:
			slog.Error("Server error", "error", err)
		case <-cmd.Context().Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer cancel()

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}

		// Stop accepting work and wait for in-flight jobs to reach a
		// terminal state.
		slog.Info("Draining job workers")
		orch.Close()

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().Int("workers", 0, "number of processing workers (0 = number of CPUs)")
	serveCmd.Flags().String("store", "", "job store database path (overrides config)")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
}
