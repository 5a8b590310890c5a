package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessadoran/stride/internal/app"
	"github.com/tessadoran/stride/internal/config"
	"github.com/tessadoran/stride/internal/record"
	"github.com/tessadoran/stride/internal/ui"
)

var remindCmd = &cobra.Command{
	Use:     "remind",
	GroupID: "data",
	Short:   "Manage reminders",
}

var remindAddCmd = &cobra.Command{
	Use:   "add <label> --at <time>",
	Short: "Add a reminder",
	Long: `Add a reminder that the daemon fires when due.

The time accepts natural language:
  stride remind add "Stand-up" --at "tomorrow at 9:30"
  stride remind add "Water the plants" --at "in 2 hours"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := strings.Join(args, " ")
		at, _ := cmd.Flags().GetString("at")
		taskID, _ := cmd.Flags().GetString("task")

		if at == "" {
			return fmt.Errorf("--at is required")
		}
		remindAt, err := parseNaturalTime(at)
		if err != nil {
			return err
		}

		return withApp(func(cfg *config.Config, a *app.App) error {
			rem, err := a.CreateReminder(cmd.Context(), &record.Reminder{
				Label:    label,
				TaskID:   taskID,
				RemindAt: remindAt,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s Reminder %s set for %s\n",
				ui.RenderPass("✓"),
				ui.RenderFaint(shortID(rem.Meta().ID)),
				remindAt.Format("Mon Jan 2 15:04"))
			return nil
		})
	},
}

var remindListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		return withApp(func(cfg *config.Config, a *app.App) error {
			reminders, err := a.Reminders(cmd.Context())
			if err != nil {
				return err
			}

			shown := 0
			for _, r := range reminders {
				if r.Fired && !all {
					continue
				}
				shown++
				status := ""
				if r.Fired {
					status = ui.RenderFaint(" (fired)")
				}
				fmt.Printf("%s  %s  %s%s\n",
					ui.RenderFaint(shortID(r.Meta().ID)),
					r.RemindAt.Format("Mon Jan 2 15:04"),
					r.Label, status)
			}
			if shown == 0 {
				fmt.Println("No pending reminders.")
			}
			return nil
		})
	},
}

func init() {
	remindAddCmd.Flags().String("at", "", "When to fire (natural language)")
	remindAddCmd.Flags().String("task", "", "Attach to a task id")
	remindListCmd.Flags().BoolP("all", "a", false, "Include fired reminders")

	remindCmd.AddCommand(remindAddCmd, remindListCmd)
	rootCmd.AddCommand(remindCmd)
}
