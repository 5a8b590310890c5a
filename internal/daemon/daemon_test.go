package daemon

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tessadoran/stride/internal/app"
	"github.com/tessadoran/stride/internal/record"
	"github.com/tessadoran/stride/internal/store"
)

const testOwner = "tessa"

func newTestDaemon(t *testing.T) (*Daemon, *app.App) {
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

	cfg := DefaultConfig()
	cfg.Logger = quiet
	d, err := New(a, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return d, a
}

func TestIngestFile_CreatesRecordAndRemovesFile(t *testing.T) {
	d, a := newTestDaemon(t)

	path := filepath.Join(t.TempDir(), "task.json")
	body := `{"table": "tasks", "record": {"title": "dropped from inbox", "status": "open", "priority": 2}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	if err := d.ingestFile(path); err != nil {
		t.Fatalf("ingestFile() failed: %v", err)
	}

	tasks, err := a.Tasks(context.Background())
	if err != nil {
		t.Fatalf("Tasks() failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "dropped from inbox" {
		t.Fatalf("tasks = %+v, want the ingested task", tasks)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("ingested file was not removed")
	}
}

func TestIngestFile_RejectsBadPayload(t *testing.T) {
	d, a := newTestDaemon(t)

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"table": "tasks", "record": {"priority": 99}}`), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	if err := d.ingestFile(path); err == nil {
		t.Fatal("ingestFile() accepted an invalid record")
	}
	tasks, err := a.Tasks(context.Background())
	if err != nil {
		t.Fatalf("Tasks() failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("tasks = %+v, want none", tasks)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("rejected file should stay in place for inspection")
	}
}

func TestIngestFile_MissingFileIsNotAnError(t *testing.T) {
	d, _ := newTestDaemon(t)
	if err := d.ingestFile(filepath.Join(t.TempDir(), "gone.json")); err != nil {
		t.Fatalf("ingestFile() on a missing file failed: %v", err)
	}
}

func TestCheckReminders_MarksDueFired(t *testing.T) {
	d, a := newTestDaemon(t)
	ctx := context.Background()

	due := &record.Reminder{Label: "due", RemindAt: time.Now().Add(-time.Minute)}
	if _, err := a.Create(ctx, due); err != nil {
		t.Fatalf("Create(reminder) failed: %v", err)
	}
	future := &record.Reminder{Label: "future", RemindAt: time.Now().Add(time.Hour)}
	if _, err := a.Create(ctx, future); err != nil {
		t.Fatalf("Create(reminder) failed: %v", err)
	}

	d.checkReminders()

	reminders, err := a.Reminders(ctx)
	if err != nil {
		t.Fatalf("Reminders() failed: %v", err)
	}
	for _, r := range reminders {
		switch r.Label {
		case "due":
			if !r.Fired {
				t.Error("due reminder not marked fired")
			}
		case "future":
			if r.Fired {
				t.Error("future reminder fired early")
			}
		}
	}
}
