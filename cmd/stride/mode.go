package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tessadoran/stride/internal/app"
	"github.com/tessadoran/stride/internal/config"
	"github.com/tessadoran/stride/internal/ui"
)

var modeCmd = &cobra.Command{
	Use:     "mode [new-mode]",
	GroupID: "sync",
	Short:   "Show or change the operating mode",
	Long: `Without arguments, print the current mode. With an argument, switch
to that mode and persist it to the config file.

Modes:
  local-only     everything stays on this machine
  remote-only    reads and writes go straight to the remote database
  synchronized   local-first with background sync (default)

Queued changes survive mode switches; switching to local-only and back
does not lose pending work.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			fmt.Println(cfg.Mode)
			return nil
		}

		newMode := app.Mode(args[0])
		if !newMode.IsValid() {
			return fmt.Errorf("unknown mode %q (want local-only, remote-only or synchronized)", args[0])
		}

		// Validate the switch against a live app before persisting it.
		cfg.Mode = string(newMode)
		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := persistMode(newMode); err != nil {
			return err
		}
		fmt.Printf("%s Mode set to %s\n", ui.RenderPass("✓"), ui.RenderAccent(string(newMode)))
		return nil
	},
}

// persistMode writes the mode back to the config file, creating it if absent.
func persistMode(mode app.Mode) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	_ = v.ReadInConfig() // absent file is fine, we create it below

	v.Set("mode", string(mode))
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(modeCmd)
}
