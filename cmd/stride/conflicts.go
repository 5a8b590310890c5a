package main

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tessadoran/stride/internal/app"
	"github.com/tessadoran/stride/internal/config"
	"github.com/tessadoran/stride/internal/ledger"
	"github.com/tessadoran/stride/internal/ui"
)

var conflictsCmd = &cobra.Command{
	Use:     "conflicts",
	GroupID: "sync",
	Short:   "List and resolve sync conflicts",
	Long: `List open conflicts between local and remote versions of a record.

Each conflict keeps both versions until you resolve it:
  local    keep this machine's version and push it
  remote   take the remote version and discard local edits
  merge    combine both (non-empty local text wins, newest timestamp wins)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(cfg *config.Config, a *app.App) error {
			conflicts, err := a.Conflicts(cmd.Context())
			if err != nil {
				return err
			}
			if len(conflicts) == 0 {
				fmt.Println("No open conflicts.")
				return nil
			}

			fmt.Println(ui.RenderHeader(fmt.Sprintf("%d open conflicts", len(conflicts))))
			for _, c := range conflicts {
				fmt.Printf("%s  %s/%s  %s  detected %s\n",
					ui.RenderFaint(shortID(c.ID)),
					c.Table, shortID(c.RecordID),
					ui.RenderWarn(string(c.Type)),
					c.DetectedAt.Format("Jan 2 15:04"))
			}
			fmt.Println("\nRun 'stride conflicts resolve <id>' to resolve one.")
			return nil
		})
	},
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id>",
	Short: "Resolve one conflict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategyFlag, _ := cmd.Flags().GetString("strategy")

		return withApp(func(cfg *config.Config, a *app.App) error {
			conflicts, err := a.Conflicts(cmd.Context())
			if err != nil {
				return err
			}

			var target *ledger.Conflict
			for i := range conflicts {
				if conflicts[i].ID == args[0] || shortID(conflicts[i].ID) == args[0] {
					target = &conflicts[i]
					break
				}
			}
			if target == nil {
				return fmt.Errorf("no conflict matches %q", args[0])
			}

			printVersions(target)

			strategy := ledger.Strategy(strategyFlag)
			if strategyFlag == "" {
				strategy, err = pickStrategy()
				if err != nil {
					return err
				}
			}
			if !strategy.IsValid() {
				return fmt.Errorf("unknown strategy %q (want local, remote or merge)", strategyFlag)
			}

			if err := a.ResolveConflict(cmd.Context(), target.ID, strategy); err != nil {
				return err
			}
			fmt.Printf("%s Resolved with %s\n", ui.RenderPass("✓"), ui.RenderAccent(string(strategy)))
			return nil
		})
	},
}

// printVersions shows both sides of the conflict as indented JSON.
func printVersions(c *ledger.Conflict) {
	fmt.Println(ui.RenderHeader(fmt.Sprintf("Conflict on %s/%s", c.Table, shortID(c.RecordID))))
	if c.Local != nil {
		fmt.Println(ui.RenderAccent("Local:"))
		fmt.Println(indentJSON(c.Local))
	} else {
		fmt.Println(ui.RenderAccent("Local:") + " (deleted)")
	}
	if c.Remote != nil {
		fmt.Println(ui.RenderAccent("Remote:"))
		fmt.Println(indentJSON(c.Remote))
	} else {
		fmt.Println(ui.RenderAccent("Remote:") + " (deleted)")
	}
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "  ", "  ")
	if err != nil {
		return fmt.Sprintf("  %v", v)
	}
	return "  " + string(data)
}

// pickStrategy prompts interactively when no --strategy flag was given.
func pickStrategy() (ledger.Strategy, error) {
	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How should this conflict be resolved?").
				Options(
					huh.NewOption("Keep local version", string(ledger.KeepLocal)),
					huh.NewOption("Take remote version", string(ledger.KeepRemote)),
					huh.NewOption("Merge both", string(ledger.Merge)),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("resolution cancelled: %w", err)
	}
	return ledger.Strategy(choice), nil
}

func init() {
	conflictsResolveCmd.Flags().StringP("strategy", "s", "", "Resolution strategy: local, remote or merge")

	conflictsCmd.AddCommand(conflictsResolveCmd)
	rootCmd.AddCommand(conflictsCmd)
}
