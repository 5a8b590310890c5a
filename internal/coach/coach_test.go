package coach

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tessadoran/stride/internal/app"
	"github.com/tessadoran/stride/internal/record"
	"github.com/tessadoran/stride/internal/store"
)

const testOwner = "tessa"

// fakeCompleter records what it was asked and answers with a canned reply.
type fakeCompleter struct {
	system string
	prompt string
	reply  string
	err    error
}

func (f *fakeCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.system = system
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestCoach(t *testing.T) (*Coach, *app.App, *fakeCompleter) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := st.InitSchema(); err != nil {
		st.Close()
		t.Fatalf("InitSchema() failed: %v", err)
	}

	quiet := log.New(io.Discard, "", 0)
	a, err := app.New(app.Config{
		Session: app.Session{Owner: testOwner, Mode: app.LocalOnly},
		Store:   st,
		Logger:  quiet,
	})
	if err != nil {
		st.Close()
		t.Fatalf("app.New() failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	fc := &fakeCompleter{reply: "Start with the launch checklist."}
	return New(a, fc, quiet), a, fc
}

func TestAsk_StoresBothSides(t *testing.T) {
	c, a, fc := newTestCoach(t)
	ctx := context.Background()

	reply, err := c.Ask(ctx, "session-1", "what should I do first?")
	if err != nil {
		t.Fatalf("Ask() failed: %v", err)
	}
	if reply != fc.reply {
		t.Errorf("reply = %q, want %q", reply, fc.reply)
	}

	recs, err := a.List(ctx, record.TableMessages)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("stored %d messages, want 2", len(recs))
	}
	user := recs[0].(*record.Message)
	assistant := recs[1].(*record.Message)
	if user.Role != record.RoleUser || user.Body != "what should I do first?" {
		t.Errorf("first message = %s %q, want user question", user.Role, user.Body)
	}
	if assistant.Role != record.RoleAssistant || assistant.Body != fc.reply {
		t.Errorf("second message = %s %q, want assistant reply", assistant.Role, assistant.Body)
	}
	if user.SessionID != "session-1" || assistant.SessionID != "session-1" {
		t.Error("messages not scoped to the session")
	}
}

func TestAsk_PromptCarriesWorkload(t *testing.T) {
	c, a, fc := newTestCoach(t)
	ctx := context.Background()

	open := &record.Task{Title: "write launch checklist", Priority: 1}
	if _, err := a.CreateTask(ctx, open); err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	done := &record.Task{Title: "book flights", Status: record.TaskStatusDone}
	if _, err := a.CreateTask(ctx, done); err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	rem := &record.Reminder{Label: "standup", RemindAt: time.Now().Add(time.Hour)}
	if _, err := a.Create(ctx, rem); err != nil {
		t.Fatalf("Create(reminder) failed: %v", err)
	}

	if _, err := c.Ask(ctx, "session-1", "where do I start?"); err != nil {
		t.Fatalf("Ask() failed: %v", err)
	}

	if !strings.Contains(fc.prompt, "write launch checklist") {
		t.Error("prompt missing the open task")
	}
	if strings.Contains(fc.prompt, "book flights") {
		t.Error("prompt should not list done tasks")
	}
	if !strings.Contains(fc.prompt, "standup") {
		t.Error("prompt missing the upcoming reminder")
	}
	if !strings.Contains(fc.prompt, "where do I start?") {
		t.Error("prompt missing the question")
	}
}

func TestAsk_HistoryKeepsRecentMessages(t *testing.T) {
	c, a, fc := newTestCoach(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		msg := &record.Message{SessionID: "session-1", Role: record.RoleUser, Body: "old message"}
		if i >= 2 {
			msg.Body = "recent message"
		}
		if _, err := a.Create(ctx, msg); err != nil {
			t.Fatalf("Create(message) failed: %v", err)
		}
	}
	other := &record.Message{SessionID: "session-2", Role: record.RoleUser, Body: "unrelated chat"}
	if _, err := a.Create(ctx, other); err != nil {
		t.Fatalf("Create(message) failed: %v", err)
	}

	if _, err := c.Ask(ctx, "session-1", "remind me where we were"); err != nil {
		t.Fatalf("Ask() failed: %v", err)
	}

	if strings.Contains(fc.prompt, "old message") {
		t.Error("prompt carries messages beyond the history window")
	}
	if !strings.Contains(fc.prompt, "recent message") {
		t.Error("prompt missing recent history")
	}
	if strings.Contains(fc.prompt, "unrelated chat") {
		t.Error("prompt carries another session's messages")
	}
}

func TestAsk_CompleterFailure(t *testing.T) {
	c, a, fc := newTestCoach(t)
	fc.err = errors.New("api unreachable")
	ctx := context.Background()

	if _, err := c.Ask(ctx, "session-1", "anything?"); err == nil {
		t.Fatal("Ask() succeeded despite completion failure")
	}

	recs, err := a.List(ctx, record.TableMessages)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("stored %d messages, want only the user question", len(recs))
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	c, _, _ := newTestCoach(t)
	if _, err := c.Ask(context.Background(), "session-1", "  "); err == nil {
		t.Fatal("Ask() accepted a blank question")
	}
}
