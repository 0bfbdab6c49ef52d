// Command collect runs one collection outside the server and writes the
// snapshot document to a file or stdout. It shares the data directory with
// the server, so a later server start serves this snapshot.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lysyi3m/civic-events/app/bootstrap"
	"github.com/lysyi3m/civic-events/app/cfg"
	"github.com/lysyi3m/civic-events/app/snapshot"
	"github.com/lysyi3m/civic-events/app/tasks"
)

type options struct {
	Days   int    `long:"days" description:"Window to collect in days (default: --default-days)"`
	Output string `long:"output" short:"o" description:"Write the snapshot JSON here instead of stdout"`
	Cached bool   `long:"cached" description:"Reuse a fresh snapshot instead of forcing a collection"`
}

func main() {
	var opts options
	appConfig, err := cfg.LoadArgs(os.Args[1:], &opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appConfig == nil {
		return
	}

	bootstrap.SetupLogging(appConfig.Debug)

	if err := run(appConfig, opts); err != nil {
		slog.Error("Collection failed", "error", err)
		os.Exit(1)
	}
}

func run(c *cfg.Cfg, opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, c)
	if err != nil {
		return err
	}
	defer app.Close()

	days := c.ClampDays(opts.Days)
	s, fromCache, err := collectSnapshot(ctx, app.Orchestrator, days, !opts.Cached)
	if err != nil {
		return err
	}

	slog.Info("Snapshot ready",
		"key", s.Key,
		"count", s.Count,
		"failed_sources", len(s.Errors),
		"from_cache", fromCache)

	if opts.Output == "" {
		return writeSnapshot(os.Stdout, s)
	}

	f, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := writeSnapshot(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// collectSnapshot returns when the collection finishes or ctx is cancelled,
// whichever comes first. The orchestrator detaches its collection from the
// caller, so an interrupt has to be observed here.
func collectSnapshot(ctx context.Context, provider tasks.SnapshotProvider, days int, refresh bool) (*snapshot.Snapshot, bool, error) {
	type result struct {
		s         *snapshot.Snapshot
		fromCache bool
		err       error
	}

	done := make(chan result, 1)
	go func() {
		s, fromCache, err := provider.Get(ctx, days, refresh)
		done <- result{s: s, fromCache: fromCache, err: err}
	}()

	select {
	case r := <-done:
		return r.s, r.fromCache, r.err
	case <-ctx.Done():
		return nil, false, fmt.Errorf("collection interrupted: %w", ctx.Err())
	}
}

func writeSnapshot(w io.Writer, s *snapshot.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
