// Package app provides the facade the rest of the application talks to.
//
// External collaborators (the CLI, the daemon, the dashboard) never touch
// the store, queue, reconciler, or gateway directly; they call the facade,
// which composes the active mode's strategy over those components.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	gosync "sync"

	"github.com/tessadoran/stride/internal/ledger"
	"github.com/tessadoran/stride/internal/record"
	"github.com/tessadoran/stride/internal/remote"
	"github.com/tessadoran/stride/internal/store"
	"github.com/tessadoran/stride/internal/sync"
)

// ErrSyncUnavailable is returned when Sync is called in a mode that has
// no reconciler (local-only and remote-only).
var ErrSyncUnavailable = errors.New("sync is only available in synchronized mode")

// App is the mode facade over the synchronization engine.
type App struct {
	session Session
	st      *store.Store
	queue   *store.Queue
	gateway remote.Gateway
	led     *ledger.Ledger
	probe   sync.Probe
	syncer  sync.Syncer
	logger  *log.Logger

	syncOpts *sync.Options

	mu       gosync.Mutex // guards mode transitions
	strategy strategy
}

// Config carries the collaborators the facade composes.
type Config struct {
	Session Session
	Store   *store.Store
	Gateway remote.Gateway
	Probe   sync.Probe

	// SyncOptions configures the reconciler built for synchronized mode.
	// May be nil.
	SyncOptions *sync.Options

	// Logger for facade activity. If nil, a default logger writing to
	// stderr is used.
	Logger *log.Logger
}

// New creates the facade and activates the session's mode.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if !cfg.Session.Mode.IsValid() {
		return nil, fmt.Errorf("unknown mode: %q", cfg.Session.Mode)
	}
	if cfg.Session.Owner == "" {
		return nil, fmt.Errorf("session owner is required")
	}
	if cfg.Session.Mode != LocalOnly && cfg.Gateway == nil {
		return nil, fmt.Errorf("mode %s requires a remote gateway", cfg.Session.Mode)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[app] ", log.LstdFlags)
	}

	a := &App{
		session:  cfg.Session,
		st:       cfg.Store,
		queue:    store.NewQueue(cfg.Store),
		gateway:  cfg.Gateway,
		probe:    cfg.Probe,
		logger:   logger,
		syncOpts: cfg.SyncOptions,
	}
	if a.probe == nil {
		a.probe = sync.Probe(alwaysOffline{})
	}
	if cfg.Gateway != nil {
		a.led = ledger.New(cfg.Store, cfg.Gateway, nil)
	}

	if err := a.activate(cfg.Session.Mode); err != nil {
		return nil, err
	}
	return a, nil
}

type alwaysOffline struct{}

func (alwaysOffline) Online(context.Context) bool { return false }

// Session returns the active session value.
func (a *App) Session() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// SetMode switches the operating mode. The active strategy is fully
// closed before the new one is constructed; queued entries persist in
// durable storage and are visible again when the mode returns to
// Synchronized.
func (a *App) SetMode(mode Mode) error {
	if !mode.IsValid() {
		return fmt.Errorf("unknown mode: %q", mode)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if mode == a.session.Mode {
		return nil
	}
	if mode != LocalOnly && a.gateway == nil {
		return fmt.Errorf("mode %s requires a remote gateway", mode)
	}

	if err := a.strategy.Close(); err != nil {
		return fmt.Errorf("failed to close %s strategy: %w", a.session.Mode, err)
	}

	if err := a.activate(mode); err != nil {
		return err
	}
	a.logger.Printf("Mode changed: %s", mode)
	return nil
}

// activate builds the strategy (and reconciler, where applicable) for
// mode. Callers hold a.mu except during construction.
func (a *App) activate(mode Mode) error {
	owner := a.session.Owner

	switch mode {
	case LocalOnly:
		a.strategy = &localStrategy{owner: owner, st: a.st}
		a.syncer = nil
	case RemoteOnly:
		a.strategy = &remoteStrategy{owner: owner, gateway: a.gateway}
		a.syncer = nil
	case Synchronized:
		a.strategy = &syncedStrategy{owner: owner, st: a.st, queue: a.queue}
		a.syncer = sync.New(owner, a.st, a.queue, a.gateway, a.led, a.probe, a.syncOpts)
	}

	a.session.Mode = mode
	return nil
}

// SetSyncOptions replaces the reconciler options (retry policy, listener)
// and rebuilds the syncer when the current mode has one. Used by callers
// that attach listeners after construction, such as the dashboard.
func (a *App) SetSyncOptions(opts *sync.Options) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.syncOpts = opts
	if a.session.Mode == Synchronized {
		a.syncer = sync.New(a.session.Owner, a.st, a.queue, a.gateway, a.led, a.probe, a.syncOpts)
	}
	return nil
}

// Close shuts the facade down, closing the active strategy and the store.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.strategy.Close(); err != nil {
		return err
	}
	return a.st.Close()
}

// Online reports whether the device currently has connectivity.
func (a *App) Online(ctx context.Context) bool {
	return a.probe.Online(ctx)
}

// Sync runs one reconciliation pass. See sync.Syncer for semantics.
func (a *App) Sync(ctx context.Context) (*sync.Report, error) {
	a.mu.Lock()
	syncer := a.syncer
	a.mu.Unlock()

	if syncer == nil {
		return nil, ErrSyncUnavailable
	}
	return syncer.Sync(ctx)
}

// PendingCount returns the number of queued, unpushed mutations.
func (a *App) PendingCount(ctx context.Context) (int, error) {
	return a.queue.Len(ctx, a.session.Owner)
}

// Conflicts lists the open conflicts for the session owner.
func (a *App) Conflicts(ctx context.Context) ([]ledger.Conflict, error) {
	if a.led == nil {
		return nil, nil
	}
	return a.led.List(ctx, a.session.Owner)
}

// ResolveConflict applies a resolution strategy to one conflict.
func (a *App) ResolveConflict(ctx context.Context, id string, strategy ledger.Strategy) error {
	if a.led == nil {
		return ledger.ErrNotFound
	}
	return a.led.Resolve(ctx, id, strategy)
}

// Create persists a new record under the active mode.
func (a *App) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	return a.currentStrategy().Create(ctx, rec)
}

// Get retrieves a record by table and id.
func (a *App) Get(ctx context.Context, table record.Table, id string) (record.Record, error) {
	return a.currentStrategy().Get(ctx, table, id)
}

// List retrieves all of the owner's records in a table, in creation order.
func (a *App) List(ctx context.Context, table record.Table) ([]record.Record, error) {
	return a.currentStrategy().List(ctx, table)
}

// Update applies a patch function to a record.
func (a *App) Update(ctx context.Context, table record.Table, id string, patch func(record.Record) error) (record.Record, error) {
	return a.currentStrategy().Update(ctx, table, id, patch)
}

// Delete removes a record.
func (a *App) Delete(ctx context.Context, table record.Table, id string) error {
	return a.currentStrategy().Delete(ctx, table, id)
}

func (a *App) currentStrategy() strategy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.strategy
}

// Typed convenience wrappers used by the CLI and daemon.

// Tasks lists the owner's tasks.
func (a *App) Tasks(ctx context.Context) ([]*record.Task, error) {
	recs, err := a.List(ctx, record.TableTasks)
	if err != nil {
		return nil, err
	}
	tasks := make([]*record.Task, 0, len(recs))
	for _, rec := range recs {
		tasks = append(tasks, rec.(*record.Task))
	}
	return tasks, nil
}

// CreateTask persists a new task.
func (a *App) CreateTask(ctx context.Context, task *record.Task) (*record.Task, error) {
	task.SetDefaults()
	rec, err := a.Create(ctx, task)
	if err != nil {
		return nil, err
	}
	return rec.(*record.Task), nil
}

// Reminders lists the owner's reminders.
func (a *App) Reminders(ctx context.Context) ([]*record.Reminder, error) {
	recs, err := a.List(ctx, record.TableReminders)
	if err != nil {
		return nil, err
	}
	reminders := make([]*record.Reminder, 0, len(recs))
	for _, rec := range recs {
		reminders = append(reminders, rec.(*record.Reminder))
	}
	return reminders, nil
}

// CreateReminder persists a new reminder.
func (a *App) CreateReminder(ctx context.Context, rem *record.Reminder) (*record.Reminder, error) {
	rec, err := a.Create(ctx, rem)
	if err != nil {
		return nil, err
	}
	return rec.(*record.Reminder), nil
}

// CreateCredential persists a new credential.
func (a *App) CreateCredential(ctx context.Context, cred *record.Credential) (*record.Credential, error) {
	rec, err := a.Create(ctx, cred)
	if err != nil {
		return nil, err
	}
	return rec.(*record.Credential), nil
}
