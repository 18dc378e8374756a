package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spindleworks/novem/archive"
	"github.com/spindleworks/novem/config"
	"github.com/spindleworks/novem/errors"
	"github.com/spindleworks/novem/flow"
	"github.com/spindleworks/novem/judge"
	"github.com/spindleworks/novem/logger"
	"github.com/spindleworks/novem/server"
	"github.com/spindleworks/novem/store"
	"github.com/spindleworks/novem/subspace"
	"github.com/spindleworks/novem/version"
)

// ServeCmd starts the novem server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the bucket store with background traversal and the API server",
	Long: `Launch the full novem stack: the in-memory bucket store, the anchor
judgment subsystem with its signal-subspace monitors, a background traversal
pool, and the read-only HTTP API with its WebSocket event stream.

Configuration changes to the watched config file are applied live: judgment
thresholds, monitor parameters, traversal rate and allowed origins all take
effect without a restart.`,
	RunE: runServe,
}

var (
	servePort   int
	serveNoFlow bool
	serveWatch  string
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	ServeCmd.Flags().BoolVar(&serveNoFlow, "no-flow", false, "Disable background traversal")
	ServeCmd.Flags().StringVar(&serveWatch, "watch", "", "Config file to watch for live reload")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	pterm.Info.Println(version.Get().String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core stack: judge + monitor + archive sink behind the store
	j := judge.New(cfg.JudgeConfig())
	monitor := subspace.NewMonitor(cfg.MonitorParams())
	sink := archive.NewMemorySink(cfg.Archive.Retention)
	st := store.New(j, monitor, sink, cfg.StoreOptions())
	defer st.Close()

	var pool *flow.Pool
	if !serveNoFlow && cfg.Flow.Workers > 0 {
		pool = flow.NewPoolWithContext(ctx, st, flowConfig(cfg), logger.Logger)
		pool.Start()
		defer pool.Stop()
	}

	srv := server.New(ctx, st, pool, cfg.Server, logger.Logger)
	if err := srv.Start(port); err != nil {
		return errors.Wrap(err, "failed to start server")
	}

	// Live reload: swap tunables into the running subsystems on file change
	if serveWatch != "" {
		watcher, err := config.NewConfigWatcher(serveWatch)
		if err != nil {
			return errors.Wrap(err, "failed to watch config")
		}
		watcher.OnReload(func(next *config.Config) error {
			j.SetConfig(next.JudgeConfig())
			monitor.SetParams(next.MonitorParams())
			st.SetOptions(next.StoreOptions())
			srv.SetAllowedOrigins(next.Server.AllowedOrigins)
			if pool != nil {
				pool.SetConfig(flowConfig(next))
			}
			logger.Infow("Applied reloaded configuration")
			return nil
		})
		watcher.Start()
		config.SetGlobalWatcher(watcher)
		defer watcher.Stop()
		pterm.Info.Printf("Watching %s for configuration changes\n", serveWatch)
	}

	pterm.Success.Printf("novem listening on %s\n", srv.Port())

	// Wait for shutdown signal (Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

	shutdownDone := make(chan error, 1)
	go func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		shutdownDone <- srv.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-shutdownDone:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		pterm.Success.Println("Server stopped cleanly")
		return nil
	case <-sigChan:
		pterm.Warning.Println("\nForce shutdown - exiting immediately")
		os.Exit(1)
		return nil // unreachable
	}
}

func flowConfig(cfg *config.Config) flow.Config {
	fc := flow.DefaultConfig()
	fc.Workers = cfg.Flow.Workers
	fc.StepsPerSecond = cfg.Flow.StepsPerSecond
	fc.RekeyInterval = cfg.Flow.RekeyInterval
	return fc
}
