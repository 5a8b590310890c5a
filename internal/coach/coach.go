// Package coach generates short planning advice from the user's open work.
//
// It gathers open tasks, upcoming reminders and the recent chat history
// into a prompt, sends it to a completion backend, and records both sides
// of the exchange as message records so the conversation syncs like any
// other data.
package coach

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/tessadoran/stride/internal/app"
	"github.com/tessadoran/stride/internal/record"
)

const systemPrompt = `You are a focused personal productivity coach. You see the user's
open tasks and upcoming reminders. Give short, concrete advice: what to do
next and why. Prefer one clear recommendation over a list of options.`

// Completer produces a model reply for a system prompt and user message.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Coach wires the app's data into a completion backend.
type Coach struct {
	app       *app.App
	completer Completer
	logger    *log.Logger
}

// New creates a Coach. A nil logger gets a stderr default.
func New(a *app.App, completer Completer, logger *log.Logger) *Coach {
	if logger == nil {
		logger = log.New(os.Stderr, "[coach] ", log.LstdFlags)
	}
	return &Coach{app: a, completer: completer, logger: logger}
}

// Ask sends the user's question plus current workload context to the
// completer and stores both the question and the reply in the given
// chat session. It returns the reply text.
func (c *Coach) Ask(ctx context.Context, sessionID, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question must not be empty")
	}

	prompt, err := c.buildPrompt(ctx, sessionID, question)
	if err != nil {
		return "", err
	}

	if err := c.storeMessage(ctx, sessionID, record.RoleUser, question); err != nil {
		return "", err
	}

	reply, err := c.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	if err := c.storeMessage(ctx, sessionID, record.RoleAssistant, reply); err != nil {
		// The reply exists; losing the stored copy is worth a warning, not a failure.
		c.logger.Printf("WARNING: failed to store reply: %v", err)
	}

	return reply, nil
}

// buildPrompt assembles workload context around the user's question.
func (c *Coach) buildPrompt(ctx context.Context, sessionID, question string) (string, error) {
	var b strings.Builder

	tasks, err := c.app.Tasks(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load tasks: %w", err)
	}
	open := 0
	b.WriteString("Open tasks:\n")
	for _, t := range tasks {
		if t.Status == record.TaskStatusDone {
			continue
		}
		open++
		line := fmt.Sprintf("- [P%d] %s (%s)", t.Priority, t.Title, t.Status)
		if t.DueAt != nil {
			line += ", due " + t.DueAt.Format("2006-01-02")
		}
		b.WriteString(line + "\n")
	}
	if open == 0 {
		b.WriteString("(none)\n")
	}

	reminders, err := c.app.Reminders(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load reminders: %w", err)
	}
	b.WriteString("\nUpcoming reminders:\n")
	upcoming := 0
	now := time.Now()
	for _, r := range reminders {
		if r.Fired || r.RemindAt.Before(now) {
			continue
		}
		upcoming++
		fmt.Fprintf(&b, "- %s at %s\n", r.Label, r.RemindAt.Format("2006-01-02 15:04"))
	}
	if upcoming == 0 {
		b.WriteString("(none)\n")
	}

	history, err := c.history(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if history != "" {
		b.WriteString("\nRecent conversation:\n")
		b.WriteString(history)
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String(), nil
}

// history returns the last few messages of the session, oldest first.
func (c *Coach) history(ctx context.Context, sessionID string) (string, error) {
	recs, err := c.app.List(ctx, record.TableMessages)
	if err != nil {
		return "", fmt.Errorf("failed to load messages: %w", err)
	}

	var msgs []*record.Message
	for _, r := range recs {
		m, ok := r.(*record.Message)
		if !ok || m.SessionID != sessionID {
			continue
		}
		msgs = append(msgs, m)
	}
	const keep = 6
	if len(msgs) > keep {
		msgs = msgs[len(msgs)-keep:]
	}

	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Body)
	}
	return b.String(), nil
}

func (c *Coach) storeMessage(ctx context.Context, sessionID, role, body string) error {
	msg := &record.Message{
		SessionID: sessionID,
		Role:      role,
		Body:      body,
	}
	if _, err := c.app.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to store %s message: %w", role, err)
	}
	return nil
}
