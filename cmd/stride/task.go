package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/tessadoran/stride/internal/app"
	"github.com/tessadoran/stride/internal/config"
	"github.com/tessadoran/stride/internal/record"
	"github.com/tessadoran/stride/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "data",
	Short:   "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a new task",
	Long: `Add a task to the board.

The due date accepts natural language:
  stride task add "Ship the report" --due "friday at 5pm"
  stride task add "Call dentist" -p 1 --due tomorrow`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.Join(args, " ")
		priority, _ := cmd.Flags().GetInt("priority")
		description, _ := cmd.Flags().GetString("description")
		due, _ := cmd.Flags().GetString("due")
		tags, _ := cmd.Flags().GetStringSlice("tag")

		var dueAt *time.Time
		if due != "" {
			t, err := parseNaturalTime(due)
			if err != nil {
				return err
			}
			dueAt = &t
		}

		return withApp(func(cfg *config.Config, a *app.App) error {
			task, err := a.CreateTask(cmd.Context(), &record.Task{
				Title:       title,
				Description: description,
				Priority:    priority,
				Tags:        tags,
				DueAt:       dueAt,
			})
			if err != nil {
				return err
			}

			fmt.Printf("%s Created task %s %s\n",
				ui.RenderPass("✓"), ui.RenderFaint(shortID(task.Meta().ID)), task.Title)
			if task.DueAt != nil {
				fmt.Printf("   Due: %s\n", task.DueAt.Format("Mon Jan 2 15:04"))
			}
			return nil
		})
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		return withApp(func(cfg *config.Config, a *app.App) error {
			tasks, err := a.Tasks(cmd.Context())
			if err != nil {
				return err
			}

			shown := 0
			for _, t := range tasks {
				if !all && t.Status == record.TaskStatusDone {
					continue
				}
				shown++
				line := fmt.Sprintf("%s  %s  %-11s %s",
					ui.RenderFaint(shortID(t.Meta().ID)),
					ui.PriorityLabel(t.Priority),
					t.Status,
					t.Title)
				if t.DueAt != nil {
					line += ui.RenderFaint("  due " + t.DueAt.Format("Jan 2"))
				}
				line += "  " + ui.StatusBadge(string(t.Meta().SyncStatus))
				fmt.Println(line)
			}
			if shown == 0 {
				fmt.Println("No open tasks.")
			}
			return nil
		})
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task as done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(cfg *config.Config, a *app.App) error {
			id, err := resolveTaskID(cmd, a, args[0])
			if err != nil {
				return err
			}
			_, err = a.Update(cmd.Context(), record.TableTasks, id, func(r record.Record) error {
				r.(*record.Task).Status = record.TaskStatusDone
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s Done\n", ui.RenderPass("✓"))
			return nil
		})
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(cfg *config.Config, a *app.App) error {
			id, err := resolveTaskID(cmd, a, args[0])
			if err != nil {
				return err
			}
			if err := a.Delete(cmd.Context(), record.TableTasks, id); err != nil {
				return err
			}
			fmt.Printf("%s Deleted\n", ui.RenderPass("✓"))
			return nil
		})
	},
}

// resolveTaskID accepts a full UUID or an unambiguous prefix.
func resolveTaskID(cmd *cobra.Command, a *app.App, arg string) (string, error) {
	tasks, err := a.Tasks(cmd.Context())
	if err != nil {
		return "", err
	}
	var matches []string
	for _, t := range tasks {
		id := t.Meta().ID
		if id == arg {
			return id, nil
		}
		if strings.HasPrefix(id, arg) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no task matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous (%d matches)", arg, len(matches))
	}
}

// parseNaturalTime parses due dates like "tomorrow at 5pm".
func parseNaturalTime(text string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand time %q", text)
	}
	return r.Time, nil
}

// shortID returns the first UUID segment, enough to identify records
// interactively.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func init() {
	taskAddCmd.Flags().IntP("priority", "p", 2, "Priority 0-4 (0=critical)")
	taskAddCmd.Flags().StringP("description", "d", "", "Longer description")
	taskAddCmd.Flags().String("due", "", "Due date (natural language)")
	taskAddCmd.Flags().StringSlice("tag", nil, "Tags (repeatable)")
	taskListCmd.Flags().BoolP("all", "a", false, "Include done tasks")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskDoneCmd, taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}
