package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessadoran/stride/internal/app"
	"github.com/tessadoran/stride/internal/config"
	syncer "github.com/tessadoran/stride/internal/sync"
	"github.com/tessadoran/stride/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run a sync cycle now",
	Long: `Push queued local changes to the remote database, then pull remote
changes down. Conflicts are recorded for later resolution; see
'stride conflicts'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(cfg *config.Config, a *app.App) error {
			start := time.Now()
			report, err := a.Sync(cmd.Context())
			switch {
			case errors.Is(err, syncer.ErrOffline):
				return fmt.Errorf("offline; queued changes will sync when connectivity returns")
			case errors.Is(err, syncer.ErrAlreadySyncing):
				return fmt.Errorf("a sync is already running")
			case errors.Is(err, app.ErrSyncUnavailable):
				return fmt.Errorf("sync requires synchronized mode (current: %s)", a.Session().Mode)
			case err != nil:
				return err
			}

			elapsed := time.Since(start).Round(time.Millisecond)
			fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), elapsed)
			fmt.Printf("   Pushed:    %d\n", report.Pushed)
			fmt.Printf("   Pulled:    %d\n", report.Pulled)
			if report.Conflicts > 0 {
				fmt.Printf("   Conflicts: %s\n", ui.RenderWarn(fmt.Sprintf("%d", report.Conflicts)))
				fmt.Println("\nRun 'stride conflicts' to resolve.")
			}
			for _, f := range report.Failures {
				fmt.Printf("   %s %s/%s (%s): %v\n", ui.RenderWarn("!"), f.Table, shortID(f.RecordID), f.Phase, f.Err)
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(cfg *config.Config, a *app.App) error {
			sess := a.Session()
			fmt.Printf("Mode:     %s\n", ui.RenderAccent(string(sess.Mode)))
			fmt.Printf("Owner:    %s\n", sess.Owner)
			fmt.Printf("Database: %s\n", cfg.DBPath)

			if sess.Mode == app.LocalOnly {
				return nil
			}

			if a.Online(cmd.Context()) {
				fmt.Printf("Network:  %s\n", ui.RenderPass("online"))
			} else {
				fmt.Printf("Network:  %s\n", ui.RenderWarn("offline"))
			}

			pending, err := a.PendingCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Queued:   %d\n", pending)

			conflicts, err := a.Conflicts(cmd.Context())
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				fmt.Printf("Conflicts: %s\n", ui.RenderWarn(fmt.Sprintf("%d", len(conflicts))))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd, statusCmd)
}
