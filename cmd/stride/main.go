// Command stride is a local-first task and coaching CLI.
//
// All writes land in the local SQLite database first; a durable queue
// mirrors them to a remote libsql database when connectivity allows.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessadoran/stride/internal/app"
	"github.com/tessadoran/stride/internal/config"
	"github.com/tessadoran/stride/internal/logging"
	"github.com/tessadoran/stride/internal/netx"
	"github.com/tessadoran/stride/internal/remote"
	"github.com/tessadoran/stride/internal/store"
	"github.com/tessadoran/stride/internal/sync"
)

var (
	configPath string
	modeFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Local-first tasks, reminders and coaching",
	Long: `Stride keeps your tasks, reminders and coaching chats in a local
SQLite database and syncs them to a remote database when you're online.

Writes always succeed locally; the sync engine pushes queued changes and
pulls remote ones, surfacing conflicts for explicit resolution.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.stride/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "Override operating mode (local-only, remote-only, synchronized)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Data commands:"},
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced commands:"},
	)
}

// loadConfig reads the config file and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if modeFlag != "" {
		cfg.Mode = modeFlag
	}
	return cfg, nil
}

// openApp builds the full application from config: store, gateway, probe
// and facade. The caller must Close the returned app.
func openApp(cfg *config.Config) (*app.App, error) {
	logger := logging.New("[stride] ", &logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Quiet:      cfg.Log.Quiet,
	})

	mode := app.Mode(cfg.Mode)
	if !mode.IsValid() {
		return nil, fmt.Errorf("unknown mode %q (want local-only, remote-only or synchronized)", cfg.Mode)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.InitSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	var gateway remote.Gateway
	var probe sync.Probe
	if mode != app.LocalOnly {
		if cfg.Remote.URL == "" {
			st.Close()
			return nil, fmt.Errorf("mode %s requires remote.url in config", mode)
		}
		gw, err := remote.OpenTurso(cfg.Remote.URL, cfg.Remote.AuthToken)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to open remote database: %w", err)
		}
		gateway = gw

		if cfg.Remote.ProbeURL != "" {
			probe = netx.NewHTTPProbe(cfg.Remote.ProbeURL, 5*time.Second)
		} else {
			probe = netx.NewGatewayProbe(gw, 5*time.Second)
		}
	}

	a, err := app.New(app.Config{
		Session: app.Session{Owner: cfg.Owner, Mode: mode},
		Store:   st,
		Gateway: gateway,
		Probe:   probe,
		SyncOptions: &sync.Options{
			Policy: sync.Backoff{
				Initial:  time.Duration(cfg.Sync.RetryInitialMS) * time.Millisecond,
				Attempts: uint64(cfg.Sync.RetryAttempts),
			},
			Logger: logger,
		},
		Logger: logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

// withApp handles the config-load/open/close boilerplate shared by most
// commands.
func withApp(fn func(cfg *config.Config, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("WARNING: close failed: %v", err)
		}
	}()
	return fn(cfg, a)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
