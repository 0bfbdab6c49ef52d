package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/civic-events/app/api"
	"github.com/lysyi3m/civic-events/app/bootstrap"
	"github.com/lysyi3m/civic-events/app/cfg"
	"github.com/lysyi3m/civic-events/app/tasks"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown
		return
	}

	bootstrap.SetupLogging(appConfig.Debug)
	slog.Info("Starting Civic Events server", "version", appConfig.Version)

	app, err := bootstrap.New(context.Background(), appConfig)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	windows := []int{appConfig.DefaultDays}
	slog.Info("Starting background scheduler",
		"workers", appConfig.WorkerCount,
		"interval", appConfig.SchedulerIntervalDuration().String())
	scheduler := tasks.NewScheduler(app.Orchestrator, windows, appConfig.SchedulerIntervalDuration(), appConfig.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(app.Orchestrator, app.Registry, app.Runs, scheduler,
		app.Stats(),
		api.DayWindow{Default: appConfig.DefaultDays, Max: appConfig.MaxDays})
	server := api.NewServer(handler, appConfig.APIAccessKey)

	// refresh=1 waits for a whole collection before writing.
	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: appConfig.BatchTimeoutDuration(app.Orchestrator.CollectorCount()) + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Civic Events server shutdown complete")
}
