// Package sync implements the reconciler that keeps the local store and
// the remote store in agreement.
package sync

import (
	"context"
	"time"

	"github.com/tessadoran/stride/internal/ledger"
	"github.com/tessadoran/stride/internal/record"
)

// Syncer reconciles the local record store with the remote store.
//
// A sync run is always explicit: it is triggered by a connectivity change
// or a user action, never by a background schedule inside the engine. Each
// run performs the push phase (drain the queue of pending mutations) and
// then the pull phase (fetch remote records and merge them locally),
// producing conflicts where local unsynced edits and remote changes
// disagree.
//
// The syncer is resilient: an individual entry or record failure is logged
// and reported but never aborts the run. A run always attempts its full
// push phase and full pull phase before returning.
type Syncer interface {
	// Sync performs one push-then-pull reconciliation pass.
	//
	// Fails immediately with ErrOffline if connectivity is unavailable at
	// call time, without touching the queue. Fails with ErrAlreadySyncing
	// if another Sync call is in flight; concurrent interleaved passes
	// would corrupt the queue's ordering guarantees.
	//
	// Per-entry and per-record failures are collected in the returned
	// Report, not raised: the entries stay queued and are retried on the
	// next call.
	Sync(ctx context.Context) (*Report, error)
}

// Probe reports whether the device currently has connectivity to the
// remote store. The syncer consults it once, as a precondition.
type Probe interface {
	Online(ctx context.Context) bool
}

// Listener receives sync lifecycle events. All methods are called
// synchronously from the sync run; implementations must not block.
type Listener interface {
	OnSyncStarted()
	OnSyncCompleted(report *Report)
	OnConflictDetected(c ledger.Conflict)
	OnRecordPulled(rec record.Record)
}

// Report summarizes one reconciliation pass. Failures are described, not
// raised; a caller that needs to distinguish a clean pass checks Failures.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time

	// Pushed counts queue entries successfully delivered and removed.
	Pushed int
	// Pulled counts remote records inserted or updated locally.
	Pulled int
	// Conflicts counts conflicts recorded during the pull phase.
	Conflicts int

	// Failures lists per-entry and per-record errors from both phases.
	Failures []Failure
}

// Failure describes one per-entry or per-record error inside a run.
type Failure struct {
	Phase    string // "push" or "pull"
	Table    record.Table
	RecordID string
	Err      error
}

// Duration returns the wall time the pass took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Clean reports whether the pass completed with no failures.
func (r *Report) Clean() bool {
	return len(r.Failures) == 0
}
