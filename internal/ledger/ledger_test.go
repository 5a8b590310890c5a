package ledger

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/tessadoran/stride/internal/record"
	"github.com/tessadoran/stride/internal/remote"
	"github.com/tessadoran/stride/internal/store"
)

const testOwner = "tessa"

// fakeGateway is an in-memory remote.Gateway for exercising resolutions
// without a network.
type fakeGateway struct {
	records    map[string]record.Record // "table/id" -> record
	insertErr  error
	insertSeen int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{records: make(map[string]record.Record)}
}

func key(table record.Table, id string) string { return string(table) + "/" + id }

func (f *fakeGateway) Insert(ctx context.Context, rec record.Record) error {
	f.insertSeen++
	if f.insertErr != nil {
		return f.insertErr
	}
	clone, err := record.Clone(rec)
	if err != nil {
		return err
	}
	f.records[key(rec.Table(), rec.Meta().ID)] = clone
	return nil
}

func (f *fakeGateway) Update(ctx context.Context, rec record.Record) error {
	if _, ok := f.records[key(rec.Table(), rec.Meta().ID)]; !ok {
		return remote.ErrNotFound
	}
	return f.Insert(ctx, rec)
}

func (f *fakeGateway) Delete(ctx context.Context, table record.Table, owner, id string) error {
	delete(f.records, key(table, id))
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

func newTestLedger(t *testing.T) (*Ledger, *store.Store, *fakeGateway) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	gw := newFakeGateway()
	quiet := log.New(io.Discard, "", 0)
	return New(st, gw, quiet), st, gw
}

// conflictPair creates a local record in the store plus a diverged remote
// snapshot of it.
func conflictPair(t *testing.T, st *store.Store) (*record.Task, *record.Task) {
	t.Helper()
	ctx := context.Background()

	local := &record.Task{Title: "local edit", Description: "written offline"}
	local.SetDefaults()
	created, err := st.Create(ctx, testOwner, local)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	local = created.(*record.Task)

	rem, err := record.Clone(local)
	if err != nil {
		t.Fatalf("Clone() failed: %v", err)
	}
	remTask := rem.(*record.Task)
	remTask.Title = "remote edit"
	remTask.Description = ""
	remTask.SyncStatus = record.StatusSynced
	remTask.Touch(local.UpdatedAt.Add(time.Minute))
	return local, remTask
}

func recordConflict(t *testing.T, led *Ledger, local, rem record.Record) Conflict {
	t.Helper()
	c := Conflict{
		OwnerID:  testOwner,
		Table:    local.Table(),
		RecordID: local.Meta().ID,
		Type:     record.OpUpdate,
		Local:    local,
		Remote:   rem,
	}
	if err := led.Record(context.Background(), c); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	conflicts, err := led.List(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(conflicts) == 0 {
		t.Fatal("conflict was not stored")
	}
	return conflicts[len(conflicts)-1]
}

// TestRecord_OnePerRecord tests that re-detection refreshes the remote
// snapshot without replacing the original conflict.
func TestRecord_OnePerRecord(t *testing.T) {
	led, st, _ := newTestLedger(t)
	ctx := context.Background()
	local, rem := conflictPair(t, st)

	first := recordConflict(t, led, local, rem)

	// Second detection with newer remote state.
	rem2, err := record.Clone(rem)
	if err != nil {
		t.Fatalf("Clone() failed: %v", err)
	}
	rem2.(*record.Task).Title = "remote edit v2"
	recordConflict(t, led, local, rem2)

	conflicts, err := led.List(ctx, testOwner)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("re-detection created a second conflict: %d open", len(conflicts))
	}
	got := conflicts[0]
	if got.ID != first.ID {
		t.Error("re-detection replaced the conflict id")
	}
	if got.Remote.(*record.Task).Title != "remote edit v2" {
		t.Errorf("remote snapshot was not refreshed: %q", got.Remote.(*record.Task).Title)
	}
	if got.Local.(*record.Task).Title != "local edit" {
		t.Error("local snapshot should survive re-detection")
	}
}

// TestResolve_KeepLocal tests that the live local record wins and is pushed
func TestResolve_KeepLocal(t *testing.T) {
	led, st, gw := newTestLedger(t)
	ctx := context.Background()
	local, rem := conflictPair(t, st)
	c := recordConflict(t, led, local, rem)

	if err := led.Resolve(ctx, c.ID, KeepLocal); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	pushed, ok := gw.records[key(record.TableTasks, local.Meta().ID)]
	if !ok {
		t.Fatal("local record was not pushed")
	}
	if pushed.(*record.Task).Title != "local edit" {
		t.Errorf("pushed title = %q", pushed.(*record.Task).Title)
	}

	got, err := st.Get(ctx, record.TableTasks, local.Meta().ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Meta().SyncStatus != record.StatusSynced {
		t.Errorf("local record status = %q, want synced", got.Meta().SyncStatus)
	}

	conflicts, _ := led.List(ctx, testOwner)
	if len(conflicts) != 0 {
		t.Error("conflict should be removed after resolution")
	}
}

// TestResolve_KeepRemote tests that the remote snapshot replaces local state
func TestResolve_KeepRemote(t *testing.T) {
	led, st, _ := newTestLedger(t)
	ctx := context.Background()
	local, rem := conflictPair(t, st)
	c := recordConflict(t, led, local, rem)

	if err := led.Resolve(ctx, c.ID, KeepRemote); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	got, err := st.Get(ctx, record.TableTasks, local.Meta().ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	task := got.(*record.Task)
	if task.Title != "remote edit" {
		t.Errorf("title = %q, want remote edit", task.Title)
	}
	if task.SyncStatus != record.StatusSynced {
		t.Errorf("status = %q, want synced", task.SyncStatus)
	}
	if task.ID != local.Meta().ID {
		t.Error("resolution changed the record id")
	}
}

// TestResolve_Merge tests the merge rules: non-empty local text wins,
// newest timestamp wins.
func TestResolve_Merge(t *testing.T) {
	led, st, gw := newTestLedger(t)
	ctx := context.Background()
	local, rem := conflictPair(t, st)
	c := recordConflict(t, led, local, rem)

	if err := led.Resolve(ctx, c.ID, Merge); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	got, err := st.Get(ctx, record.TableTasks, local.Meta().ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	merged := got.(*record.Task)

	// Both sides have a title; local wins. Only local has a description.
	if merged.Title != "local edit" {
		t.Errorf("merged title = %q, want local edit", merged.Title)
	}
	if merged.Description != "written offline" {
		t.Errorf("merged description = %q", merged.Description)
	}
	// Remote timestamp was newer.
	if !merged.UpdatedAt.Equal(rem.UpdatedAt) {
		t.Errorf("merged updated_at = %v, want %v", merged.UpdatedAt, rem.UpdatedAt)
	}

	if _, ok := gw.records[key(record.TableTasks, local.Meta().ID)]; !ok {
		t.Error("merged record was not pushed")
	}
}

// TestResolve_PushFailureKeepsConflict tests that a failed push leaves the
// conflict open and the record pending.
func TestResolve_PushFailureKeepsConflict(t *testing.T) {
	led, st, gw := newTestLedger(t)
	ctx := context.Background()
	local, rem := conflictPair(t, st)
	c := recordConflict(t, led, local, rem)

	gw.insertErr = errors.New("network down")
	if err := led.Resolve(ctx, c.ID, KeepLocal); err == nil {
		t.Fatal("Resolve() should surface the push failure")
	}

	conflicts, err := led.List(ctx, testOwner)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("conflict should stay open after failed push: %d open", len(conflicts))
	}

	got, err := st.Get(ctx, record.TableTasks, local.Meta().ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Meta().SyncStatus != record.StatusPending {
		t.Errorf("status = %q, want pending", got.Meta().SyncStatus)
	}

	// Retry once the network is back.
	gw.insertErr = nil
	if err := led.Resolve(ctx, c.ID, KeepLocal); err != nil {
		t.Fatalf("retried Resolve() failed: %v", err)
	}
}

// TestResolve_UnknownConflict tests the not-found sentinel
func TestResolve_UnknownConflict(t *testing.T) {
	led, _, _ := newTestLedger(t)

	err := led.Resolve(context.Background(), "no-such-id", KeepLocal)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
}
