package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessadoran/stride/internal/daemon"
	"github.com/tessadoran/stride/internal/dashboard"
	"github.com/tessadoran/stride/internal/logging"
	syncpkg "github.com/tessadoran/stride/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "advanced",
	Short:   "Run the background sync daemon",
	Long: `Run the sync daemon in the foreground.

The daemon:
- syncs on a configurable interval
- watches connectivity and syncs as soon as you come back online
- fires due reminders
- optionally ingests record files dropped into an inbox directory
- optionally serves a WebSocket dashboard with live sync events

WebSocket messages include:
- sync_started / sync_complete: sync cycle lifecycle
- record_update: a record was pulled from remote
- conflict_detected: a conflict needs resolution
- stats: queue depth and conflict counts

Example usage:
  stride serve                      # Daemon only
  stride serve --dashboard          # With dashboard on config port
  stride serve --dashboard --port 9000

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		port, _ := cmd.Flags().GetInt("port")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logOpts := &logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Quiet:      cfg.Log.Quiet,
		}

		var server *dashboard.Server
		var handler *dashboard.Handler
		syncOpts := &syncpkg.Options{
			Policy: syncpkg.Backoff{
				Initial:  time.Duration(cfg.Sync.RetryInitialMS) * time.Millisecond,
				Attempts: uint64(cfg.Sync.RetryAttempts),
			},
			Logger: logging.New("[sync] ", logOpts),
		}
		if withDashboard {
			if port == 0 {
				port = cfg.Dashboard.Port
			}
			server = dashboard.NewServer(&dashboard.Config{
				Port:   port,
				Logger: logging.New("[dashboard] ", logOpts),
			})
			handler = dashboard.NewHandler(server, logging.New("[dashboard] ", logOpts))
			syncOpts.Listener = handler
		}

		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if withDashboard {
			// Rebuild the syncer with the dashboard listener attached.
			if err := a.SetSyncOptions(syncOpts); err != nil {
				return err
			}
			if err := server.Start(); err != nil {
				return fmt.Errorf("failed to start dashboard: %w", err)
			}
			defer server.Stop()

			if depth, err := a.PendingCount(cmd.Context()); err == nil {
				handler.SetQueueDepth(depth)
			}
			fmt.Printf("Dashboard: ws://localhost:%d/ws\n", port)
		}

		d, err := daemon.New(a, &daemon.Config{
			SyncInterval:     time.Duration(cfg.Sync.IntervalSeconds) * time.Second,
			ProbeInterval:    15 * time.Second,
			DebounceInterval: 200 * time.Millisecond,
			ReminderInterval: 30 * time.Second,
			InboxDir:         cfg.Daemon.InboxDir,
			Logger:           logging.New("[daemon] ", logOpts),
		})
		if err != nil {
			return err
		}

		fmt.Println("Daemon running. Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return d.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().Bool("dashboard", false, "Serve the WebSocket dashboard")
	serveCmd.Flags().IntP("port", "p", 0, "Dashboard port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
