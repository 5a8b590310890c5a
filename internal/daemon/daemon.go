// Package daemon runs the background sync loop.
//
// The daemon:
// 1. Periodically runs a full sync cycle
// 2. Polls connectivity and syncs immediately when the app comes back online
// 3. Watches an optional inbox directory for dropped record files
// 4. Fires due reminders
// 5. Handles graceful shutdown
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tessadoran/stride/internal/app"
	"github.com/tessadoran/stride/internal/record"
	syncer "github.com/tessadoran/stride/internal/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often to run a full sync cycle
	SyncInterval time.Duration

	// ProbeInterval is how often to poll connectivity
	ProbeInterval time.Duration

	// DebounceInterval is how long to wait before ingesting inbox files.
	// This batches rapid writes together
	DebounceInterval time.Duration

	// ReminderInterval is how often to check for due reminders
	ReminderInterval time.Duration

	// InboxDir is watched for dropped record JSON files. Empty disables
	// the watcher
	InboxDir string

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:     5 * time.Minute,
		ProbeInterval:    15 * time.Second,
		DebounceInterval: 200 * time.Millisecond,
		ReminderInterval: 30 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates periodic sync, connectivity tracking and inbox ingestion.
type Daemon struct {
	app    *app.App
	config *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> timestamp
	changeQueueMu sync.Mutex

	// online tracks the last observed connectivity state so the poller
	// can sync on the offline-to-online edge instead of every tick.
	online bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// inboxEnvelope is the on-disk format for dropped record files.
type inboxEnvelope struct {
	Table  record.Table    `json:"table"`
	Record json.RawMessage `json:"record"`
}

// New creates a new Daemon instance. Use Start() to begin running.
func New(a *app.App, config *Config) (*Daemon, error) {
	if a == nil {
		return nil, fmt.Errorf("app cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	var watcher *fsnotify.Watcher
	if config.InboxDir != "" {
		var err error
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		app:         a,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Run an initial sync cycle
// 2. Watch the inbox directory for dropped record files
// 3. Poll connectivity and sync when it returns
// 4. Fire reminders as they come due
//
// This blocks until ctx is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	// Initial sync. Offline at startup is normal; the poller will catch up.
	d.runSync("startup")

	if d.watcher != nil {
		if err := os.MkdirAll(d.config.InboxDir, 0o755); err != nil {
			return fmt.Errorf("failed to create inbox directory: %w", err)
		}
		if err := d.watcher.Add(d.config.InboxDir); err != nil {
			return fmt.Errorf("failed to watch inbox directory: %w", err)
		}
		d.config.Logger.Printf("Watching inbox: %s", d.config.InboxDir)

		d.wg.Add(2)
		go d.watchFileEvents()
		go d.processChangeQueue()

		// Ingest anything already sitting in the inbox.
		d.queueExisting()
	}

	d.wg.Add(3)
	go d.syncLoop()
	go d.pollConnectivity()
	go d.fireReminders()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// runSync executes one sync cycle, logging rather than failing on the
// expected interruptions (offline, already running).
func (d *Daemon) runSync(reason string) {
	report, err := d.app.Sync(d.ctx)
	switch {
	case err == nil:
		d.config.Logger.Printf("Sync (%s): pushed=%d pulled=%d conflicts=%d",
			reason, report.Pushed, report.Pulled, report.Conflicts)
	case errors.Is(err, syncer.ErrOffline):
		d.config.Logger.Printf("Sync (%s) skipped: offline", reason)
	case errors.Is(err, syncer.ErrAlreadySyncing):
		d.config.Logger.Printf("Sync (%s) skipped: already running", reason)
	case errors.Is(err, app.ErrSyncUnavailable):
		d.config.Logger.Printf("Sync (%s) skipped: not in synchronized mode", reason)
	default:
		d.config.Logger.Printf("WARNING: sync (%s) failed: %v", reason, err)
	}
}

// syncLoop runs periodic sync cycles.
func (d *Daemon) syncLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.runSync("interval")
		}
	}
}

// pollConnectivity tracks online state and syncs on the offline-to-online edge.
func (d *Daemon) pollConnectivity() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ProbeInterval)
	defer ticker.Stop()

	d.online = d.app.Online(d.ctx)

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			online := d.app.Online(d.ctx)
			if online && !d.online {
				d.config.Logger.Println("Connectivity restored")
				d.runSync("reconnect")
			}
			d.online = online
		}
	}
}

// fireReminders marks due reminders as fired and logs them.
func (d *Daemon) fireReminders() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ReminderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.checkReminders()
		}
	}
}

func (d *Daemon) checkReminders() {
	reminders, err := d.app.Reminders(d.ctx)
	if err != nil {
		d.config.Logger.Printf("WARNING: failed to load reminders: %v", err)
		return
	}

	now := time.Now()
	for _, rem := range reminders {
		if rem.Fired || rem.RemindAt.After(now) {
			continue
		}

		d.config.Logger.Printf("REMINDER: %s", rem.Label)
		_, err := d.app.Update(d.ctx, record.TableReminders, rem.Meta().ID, func(r record.Record) error {
			r.(*record.Reminder).Fired = true
			return nil
		})
		if err != nil {
			d.config.Logger.Printf("WARNING: failed to mark reminder fired: %v", err)
		}
	}
}

// watchFileEvents monitors inbox filesystem events and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			// Only care about Create and Write
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			if filepath.Ext(event.Name) != ".json" {
				continue
			}

			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueExisting queues inbox files present before the watcher started.
func (d *Daemon) queueExisting() {
	entries, err := os.ReadDir(d.config.InboxDir)
	if err != nil {
		d.config.Logger.Printf("WARNING: failed to list inbox: %v", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		d.queueChange(filepath.Join(d.config.InboxDir, entry.Name()))
	}
}

// queueChange adds a file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue ingests queued inbox files with debouncing.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges ingests files that have been queued for long enough.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	now := time.Now()
	for path, queuedAt := range d.changeQueue {
		// Only process if enough time has passed (debouncing)
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}

		if err := d.ingestFile(path); err != nil {
			d.config.Logger.Printf("WARNING: failed to ingest %s: %v", path, err)
		} else {
			d.config.Logger.Printf("Ingested: %s", filepath.Base(path))
		}

		delete(d.changeQueue, path)
	}
}

// ingestFile reads a dropped record file, creates the record through the
// app, and removes the file on success.
func (d *Daemon) ingestFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // deleted before we got to it
		}
		return fmt.Errorf("failed to read inbox file: %w", err)
	}

	var env inboxEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("invalid inbox file: %w", err)
	}

	rec, err := record.Decode(env.Table, env.Record)
	if err != nil {
		return fmt.Errorf("invalid record payload: %w", err)
	}

	if _, err := d.app.Create(d.ctx, rec); err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}

	if err := os.Remove(path); err != nil {
		d.config.Logger.Printf("WARNING: failed to remove ingested file %s: %v", path, err)
	}
	return nil
}
