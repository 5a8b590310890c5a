// Package remote provides the client abstraction over the remote record
// store. The reconciler is the only caller; failures surface as typed
// errors and are never thrown across component boundaries unhandled.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/tessadoran/stride/internal/record"
)

// Sentinel errors surfaced by Gateway implementations.
var (
	// ErrNotFound indicates the remote store has no record with that id.
	ErrNotFound = errors.New("remote record not found")

	// ErrUnauthorized indicates the remote store rejected the credentials.
	ErrUnauthorized = errors.New("remote store rejected credentials")

	// ErrConflict indicates a remote-side optimistic-lock rejection.
	// The reconciler treats it identically to a push failure.
	ErrConflict = errors.New("remote store rejected conflicting write")
)

// RemoteError wraps a transport or server failure from a gateway call.
// Callers match it with errors.As to distinguish recoverable network
// trouble from programmer errors.
type RemoteError struct {
	Op    string
	Table record.Table
	Err   error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s on %s failed: %v", e.Op, e.Table, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Gateway is the narrow CRUD+query interface to the remote store.
//
// Every call is scoped by the record's owner to prevent cross-user leakage.
// Insert and Update MUST tolerate duplicate application: the reconciler
// delivers at-least-once, and a retried entry resends the same payload
// keyed by the same client-assigned id.
type Gateway interface {
	// Insert writes a new record. Implementations upsert by id so that a
	// replayed create never produces a duplicate remote record.
	Insert(ctx context.Context, rec record.Record) error

	// Update overwrites a record's fields. Returns ErrNotFound if the
	// remote store has no record with that id.
	Update(ctx context.Context, rec record.Record) error

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, table record.Table, owner, id string) error

	// SelectAll fetches all records in a table belonging to owner.
	SelectAll(ctx context.Context, table record.Table, owner string) ([]record.Record, error)

	// Ping verifies the remote store is reachable.
	Ping(ctx context.Context) error
}
