package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/tessadoran/stride/internal/ledger"
	"github.com/tessadoran/stride/internal/record"
	"github.com/tessadoran/stride/internal/remote"
	"github.com/tessadoran/stride/internal/store"
)

// syncer implements the Syncer interface.
type syncer struct {
	owner   string
	st      *store.Store
	queue   *store.Queue
	gateway remote.Gateway
	ledger  *ledger.Ledger
	probe   Probe
	policy  RetryPolicy
	logger  *log.Logger

	listener Listener

	mu sync.Mutex // guards against concurrent Sync passes
}

// Options configures optional syncer collaborators.
type Options struct {
	// Policy controls per-call retries within a pass. Defaults to NoRetry.
	Policy RetryPolicy

	// Listener receives sync lifecycle events. May be nil.
	Listener Listener

	// Logger for sync activity. If nil, a default logger writing to
	// stderr is used.
	Logger *log.Logger
}

// New creates a new Syncer instance for one owner's records.
//
// The store must be opened and have its schema created before passing to
// this function.
//
// Example:
//
//	st, err := store.Open(".stride/stride.db")
//	if err != nil {
//	    return err
//	}
//	if err := st.InitSchema(); err != nil {
//	    return err
//	}
//	syncer := sync.New(owner, st, store.NewQueue(st), gateway, led, probe, nil)
func New(owner string, st *store.Store, queue *store.Queue, gateway remote.Gateway, led *ledger.Ledger, probe Probe, opts *Options) Syncer {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	policy := opts.Policy
	if policy == nil {
		policy = NoRetry{}
	}
	return &syncer{
		owner:    owner,
		st:       st,
		queue:    queue,
		gateway:  gateway,
		ledger:   led,
		probe:    probe,
		policy:   policy,
		logger:   logger,
		listener: opts.Listener,
	}
}

// Sync implements Syncer.Sync.
func (s *syncer) Sync(ctx context.Context) (*Report, error) {
	if !s.mu.TryLock() {
		return nil, ErrAlreadySyncing
	}
	defer s.mu.Unlock()

	// Precondition, not retry policy: offline means the queue is left
	// exactly as it was.
	if !s.probe.Online(ctx) {
		return nil, ErrOffline
	}

	report := &Report{StartedAt: time.Now()}
	if s.listener != nil {
		s.listener.OnSyncStarted()
	}

	s.pushPhase(ctx, report)
	s.pullPhase(ctx, report)

	report.FinishedAt = time.Now()
	s.logger.Printf("Sync complete: pushed=%d pulled=%d conflicts=%d failures=%d in %v",
		report.Pushed, report.Pulled, report.Conflicts, len(report.Failures),
		report.Duration().Round(time.Millisecond))

	if s.listener != nil {
		s.listener.OnSyncCompleted(report)
	}
	return report, nil
}

// pushPhase drains the sync queue in enqueue order. A failing entry is
// logged, reported, and left queued for the next run; it never blocks the
// entries behind it.
func (s *syncer) pushPhase(ctx context.Context, report *Report) {
	entries, err := s.queue.Pending(ctx, s.owner)
	if err != nil {
		s.logger.Printf("WARNING: failed to read sync queue: %v", err)
		report.Failures = append(report.Failures, Failure{Phase: "push", Err: err})
		return
	}

	for _, entry := range entries {
		if err := s.pushEntry(ctx, entry); err != nil {
			s.logger.Printf("WARNING: failed to push %s %s/%s: %v",
				entry.Mutation.Op, entry.Mutation.Table, entry.Mutation.RecordID, err)
			report.Failures = append(report.Failures, Failure{
				Phase:    "push",
				Table:    entry.Mutation.Table,
				RecordID: entry.Mutation.RecordID,
				Err:      err,
			})
			continue
		}
		report.Pushed++
	}
}

// pushEntry delivers one queue entry and, on success, removes it and marks
// the underlying record synced.
func (s *syncer) pushEntry(ctx context.Context, entry store.Entry) error {
	m := entry.Mutation

	err := s.policy.Do(ctx, func(ctx context.Context) error {
		switch m.Op {
		case record.OpCreate:
			return s.gateway.Insert(ctx, m.Record)
		case record.OpUpdate:
			// An update whose target vanished remotely still carries the
			// full payload; insert-as-upsert keeps the push idempotent.
			if err := s.gateway.Update(ctx, m.Record); err != nil {
				if errors.Is(err, remote.ErrNotFound) {
					return s.gateway.Insert(ctx, m.Record)
				}
				return err
			}
			return nil
		case record.OpDelete:
			return s.gateway.Delete(ctx, m.Table, entry.OwnerID, m.RecordID)
		default:
			return fmt.Errorf("unknown operation: %q", m.Op)
		}
	})
	if err != nil {
		return err
	}

	if err := s.queue.Remove(ctx, entry.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("pushed but failed to dequeue: %w", err)
	}

	// Deletes have no local record left to mark.
	if m.Op != record.OpDelete {
		if err := s.st.MarkSynced(ctx, m.Table, m.RecordID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("pushed but failed to mark synced: %w", err)
		}
	}
	return nil
}

// pullPhase fetches all remote records per table and merges them into the
// local store, recording conflicts where local pending edits disagree.
func (s *syncer) pullPhase(ctx context.Context, report *Report) {
	for _, table := range record.Tables() {
		remoteRecs, err := s.gateway.SelectAll(ctx, table, s.owner)
		if err != nil {
			s.logger.Printf("WARNING: failed to pull %s records: %v", table, err)
			report.Failures = append(report.Failures, Failure{Phase: "pull", Table: table, Err: err})
			continue
		}

		for _, rem := range remoteRecs {
			if err := s.pullRecord(ctx, table, rem, report); err != nil {
				s.logger.Printf("WARNING: failed to reconcile %s/%s: %v",
					table, rem.Meta().ID, err)
				report.Failures = append(report.Failures, Failure{
					Phase:    "pull",
					Table:    table,
					RecordID: rem.Meta().ID,
					Err:      err,
				})
			}
		}
	}
}

// pullRecord reconciles a single remote record against local state.
func (s *syncer) pullRecord(ctx context.Context, table record.Table, rem record.Record, report *Report) error {
	id := rem.Meta().ID

	local, err := s.st.Get(ctx, table, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	deleteQueued, err := s.queue.HasPendingDelete(ctx, table, id)
	if err != nil {
		return err
	}

	switch reconcile(local, rem, deleteQueued) {
	case decideSkip:
		return nil

	case decideInsert, decideOverwrite:
		rem.Meta().SyncStatus = record.StatusSynced
		if err := s.st.Put(ctx, rem); err != nil {
			return err
		}
		report.Pulled++
		if s.listener != nil {
			s.listener.OnRecordPulled(rem)
		}
		return nil

	case decideMarkSynced:
		return s.st.MarkSynced(ctx, table, id)

	case decideConflict:
		c := ledger.Conflict{
			OwnerID:  s.owner,
			Table:    table,
			RecordID: id,
			Type:     record.OpUpdate,
			Local:    local,
			Remote:   rem,
		}
		if err := s.ledger.Record(ctx, c); err != nil {
			return err
		}
		report.Conflicts++
		if s.listener != nil {
			s.listener.OnConflictDetected(c)
		}
		return nil
	}

	return nil
}
