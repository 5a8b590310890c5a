package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessadoran/stride/internal/app"
	"github.com/tessadoran/stride/internal/coach"
	"github.com/tessadoran/stride/internal/config"
	"github.com/tessadoran/stride/internal/record"
	"github.com/tessadoran/stride/internal/ui"
)

var coachCmd = &cobra.Command{
	Use:     "coach <question>",
	GroupID: "data",
	Short:   "Ask the coaching assistant",
	Long: `Ask the AI coach a question. The coach sees your open tasks and
upcoming reminders and answers with concrete next steps.

The conversation is stored as records, so it syncs across machines like
everything else.

Requires an Anthropic API key (coach.api_key in config, or
ANTHROPIC_API_KEY in the environment).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		newSession, _ := cmd.Flags().GetBool("new-session")

		return withApp(func(cfg *config.Config, a *app.App) error {
			if cfg.Coach.APIKey == "" {
				return fmt.Errorf("coach requires an API key (set coach.api_key or ANTHROPIC_API_KEY)")
			}

			sessionID, err := currentSession(cmd.Context(), a, question, newSession)
			if err != nil {
				return err
			}

			completer := coach.NewAnthropicCompleter(cfg.Coach.APIKey, cfg.Coach.Model, cfg.Coach.MaxTokens)
			c := coach.New(a, completer, nil)

			reply, err := c.Ask(cmd.Context(), sessionID, question)
			if err != nil {
				return err
			}

			fmt.Println(ui.RenderAccent("Coach:"))
			fmt.Println(reply)
			return nil
		})
	},
}

// currentSession returns the newest chat session, creating one when none
// exists or a fresh one was requested. New sessions are titled with the
// opening question.
func currentSession(ctx context.Context, a *app.App, question string, fresh bool) (string, error) {
	if !fresh {
		recs, err := a.List(ctx, record.TableChatSessions)
		if err != nil {
			return "", err
		}
		var latest *record.ChatSession
		for _, r := range recs {
			s := r.(*record.ChatSession)
			if s.Archived {
				continue
			}
			if latest == nil || s.Meta().CreatedAt.After(latest.Meta().CreatedAt) {
				latest = s
			}
		}
		if latest != nil {
			return latest.Meta().ID, nil
		}
	}

	title := question
	if len(title) > 60 {
		title = title[:60]
	}
	created, err := a.Create(ctx, &record.ChatSession{Title: title})
	if err != nil {
		return "", fmt.Errorf("failed to create chat session: %w", err)
	}
	return created.Meta().ID, nil
}

func init() {
	coachCmd.Flags().Bool("new-session", false, "Start a fresh conversation")
	rootCmd.AddCommand(coachCmd)
}
