package sync

import (
	"github.com/tessadoran/stride/internal/record"
)

// pullDecision is the outcome of comparing one remote record against local
// state. The syncer performs I/O based on the decision; the decision
// itself is pure so the policy can be tested without a database.
type pullDecision int

const (
	// decideSkip means local state already agrees with the remote record,
	// or the record must be left alone (queued local delete in flight).
	decideSkip pullDecision = iota

	// decideInsert means no local record exists; install the remote one
	// as synced. The remote store is authoritative for new records.
	decideInsert

	// decideOverwrite means the local record is clean and the remote one
	// is strictly newer; remote wins.
	decideOverwrite

	// decideConflict means local has unsynced edits and the remote record
	// differs; record a conflict and leave the local record untouched.
	decideConflict

	// decideMarkSynced means local has unsynced edits whose content the
	// remote already holds (a push whose acknowledgement was lost); the
	// pull confirms no disagreement, so the record is clean.
	decideMarkSynced
)

// reconcile decides what to do with an incoming remote record.
//
// Parameters:
//   - local: the current local record, or nil if none exists
//   - rem: the remote record from the pull
//   - deleteQueued: true if a local delete for this id is queued but not
//     yet pushed; the remote copy must not be resurrected past it
func reconcile(local, rem record.Record, deleteQueued bool) pullDecision {
	// A queued delete outranks anything the remote still holds for this
	// id. The delete will reach the remote on a later push; re-inserting
	// the record here would create a ghost the delete can never catch.
	if deleteQueued {
		return decideSkip
	}

	if local == nil {
		return decideInsert
	}

	switch local.Meta().SyncStatus {
	case record.StatusSynced:
		if rem.Meta().UpdatedAt.After(local.Meta().UpdatedAt) {
			return decideOverwrite
		}
		return decideSkip

	case record.StatusPending, record.StatusConflict:
		// Local has unsynced edits. Identical content means the remote is
		// just echoing what we already pushed; anything else is a
		// disagreement a human has to settle.
		if record.Equivalent(local, rem) {
			return decideMarkSynced
		}
		return decideConflict
	}

	return decideSkip
}
