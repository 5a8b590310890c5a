package app

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/tessadoran/stride/internal/netx"
	"github.com/tessadoran/stride/internal/record"
	"github.com/tessadoran/stride/internal/remote"
	"github.com/tessadoran/stride/internal/store"
	"github.com/tessadoran/stride/internal/sync"
)

const testOwner = "tessa"

// fakeGateway is an in-memory remote.Gateway sufficient for facade tests.
type fakeGateway struct {
	records map[string]record.Record
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{records: make(map[string]record.Record)}
}

func gwKey(table record.Table, id string) string { return string(table) + "/" + id }

func (f *fakeGateway) Insert(ctx context.Context, rec record.Record) error {
	clone, err := record.Clone(rec)
	if err != nil {
		return err
	}
	f.records[gwKey(rec.Table(), rec.Meta().ID)] = clone
	return nil
}

func (f *fakeGateway) Update(ctx context.Context, rec record.Record) error {
	if _, ok := f.records[gwKey(rec.Table(), rec.Meta().ID)]; !ok {
		return remote.ErrNotFound
	}
	return f.Insert(ctx, rec)
}

func (f *fakeGateway) Delete(ctx context.Context, table record.Table, owner, id string) error {
	delete(f.records, gwKey(table, id))
	return nil
}

func (f *fakeGateway) SelectAll(ctx context.Context, table record.Table, owner string) ([]record.Record, error) {
	var recs []record.Record
	for _, r := range f.records {
		if r.Table() == table && r.Meta().OwnerID == owner {
			recs = append(recs, r)
		}
	}
	return recs, nil
}

func (f *fakeGateway) Ping(ctx context.Context) error { return nil }

func newTestApp(t *testing.T, mode Mode) (*App, *fakeGateway) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := st.InitSchema(); err != nil {
		st.Close()
		t.Fatalf("InitSchema() failed: %v", err)
	}

	gw := newFakeGateway()
	quiet := log.New(io.Discard, "", 0)
	a, err := New(Config{
		Session:     Session{Owner: testOwner, Mode: mode},
		Store:       st,
		Gateway:     gw,
		Probe:       netx.Static(true),
		SyncOptions: &sync.Options{Logger: quiet},
		Logger:      quiet,
	})
	if err != nil {
		st.Close()
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, gw
}

// TestNew_LocalOnlyNeedsNoGateway tests that local-only works without a remote
func TestNew_LocalOnlyNeedsNoGateway(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := st.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	a, err := New(Config{
		Session: Session{Owner: testOwner, Mode: LocalOnly},
		Store:   st,
		Logger:  log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer a.Close()

	if _, err := a.Sync(context.Background()); !errors.Is(err, ErrSyncUnavailable) {
		t.Errorf("Sync() in local-only = %v, want ErrSyncUnavailable", err)
	}
}

// TestNew_RemoteModeRequiresGateway tests construction validation
func TestNew_RemoteModeRequiresGateway(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer st.Close()

	_, err = New(Config{
		Session: Session{Owner: testOwner, Mode: Synchronized},
		Store:   st,
	})
	if err == nil {
		t.Fatal("New() should reject synchronized mode without a gateway")
	}
}

// TestSynchronized_CreateEnqueues tests that writes in synchronized mode
// land locally and in the queue.
func TestSynchronized_CreateEnqueues(t *testing.T) {
	a, _ := newTestApp(t, Synchronized)
	ctx := context.Background()

	task, err := a.CreateTask(ctx, &record.Task{Title: "queued write"})
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	if task.SyncStatus != record.StatusPending {
		t.Errorf("status = %q, want pending", task.SyncStatus)
	}

	n, err := a.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("PendingCount() = %d, want 1", n)
	}
}

// TestLocalOnly_CreateDoesNotEnqueue tests that local-only writes bypass
// the sync queue entirely.
func TestLocalOnly_CreateDoesNotEnqueue(t *testing.T) {
	a, _ := newTestApp(t, LocalOnly)
	ctx := context.Background()

	if _, err := a.CreateTask(ctx, &record.Task{Title: "stays here"}); err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}

	n, err := a.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("PendingCount() = %d, want 0", n)
	}
}

// TestRemoteOnly_WritesGoStraightThrough tests that remote-only mode
// bypasses the local store and queue.
func TestRemoteOnly_WritesGoStraightThrough(t *testing.T) {
	a, gw := newTestApp(t, RemoteOnly)
	ctx := context.Background()

	task, err := a.CreateTask(ctx, &record.Task{Title: "direct"})
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}

	if _, ok := gw.records[gwKey(record.TableTasks, task.ID)]; !ok {
		t.Fatal("record never reached the remote")
	}
	if task.SyncStatus != record.StatusSynced {
		t.Errorf("status = %q, want synced (remote writes are synced by construction)", task.SyncStatus)
	}

	n, err := a.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("PendingCount() = %d, want 0", n)
	}
}

// TestSetMode_PreservesQueue tests that pending work survives a round trip
// through local-only mode.
func TestSetMode_PreservesQueue(t *testing.T) {
	a, _ := newTestApp(t, Synchronized)
	ctx := context.Background()

	if _, err := a.CreateTask(ctx, &record.Task{Title: "queued before switch"}); err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}

	if err := a.SetMode(LocalOnly); err != nil {
		t.Fatalf("SetMode(local-only) failed: %v", err)
	}
	if err := a.SetMode(Synchronized); err != nil {
		t.Fatalf("SetMode(synchronized) failed: %v", err)
	}

	n, err := a.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("PendingCount() = %d after mode round trip, want 1", n)
	}

	// And the queued work still syncs.
	report, err := a.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if report.Pushed != 1 {
		t.Errorf("Pushed = %d, want 1", report.Pushed)
	}
}

// TestSetMode_SameModeIsNoop tests idempotent mode setting
func TestSetMode_SameModeIsNoop(t *testing.T) {
	a, _ := newTestApp(t, Synchronized)

	if err := a.SetMode(Synchronized); err != nil {
		t.Fatalf("SetMode(same) failed: %v", err)
	}
	if a.Session().Mode != Synchronized {
		t.Errorf("mode = %q", a.Session().Mode)
	}
}

// TestResolveConflict_RequiresLedger tests the facade's conflict surface
func TestResolveConflict_RequiresLedger(t *testing.T) {
	a, _ := newTestApp(t, Synchronized)

	conflicts, err := a.Conflicts(context.Background())
	if err != nil {
		t.Fatalf("Conflicts() failed: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("fresh app has %d conflicts", len(conflicts))
	}
}
