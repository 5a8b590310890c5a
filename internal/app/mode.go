package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tessadoran/stride/internal/record"
	"github.com/tessadoran/stride/internal/remote"
	"github.com/tessadoran/stride/internal/store"
)

// Mode selects the operating strategy composed behind the facade.
type Mode string

const (
	// LocalOnly serves all reads and writes from the embedded store and
	// never touches the network or the sync queue.
	LocalOnly Mode = "local-only"

	// RemoteOnly passes reads and writes straight to the remote store,
	// bypassing the local store entirely.
	RemoteOnly Mode = "remote-only"

	// Synchronized writes locally first and mirrors every mutation into
	// the durable sync queue for the reconciler to push.
	Synchronized Mode = "synchronized"
)

// IsValid reports whether m names a known mode.
func (m Mode) IsValid() bool {
	switch m {
	case LocalOnly, RemoteOnly, Synchronized:
		return true
	}
	return false
}

// Session identifies whose records an operation touches and under which
// mode. It is passed explicitly instead of living in ambient state.
type Session struct {
	Owner string
	Mode  Mode
}

// strategy is one mode's implementation of the record operations.
// Exactly one strategy is active at a time; SetMode closes the active one
// before constructing its replacement.
type strategy interface {
	Create(ctx context.Context, rec record.Record) (record.Record, error)
	Get(ctx context.Context, table record.Table, id string) (record.Record, error)
	List(ctx context.Context, table record.Table) ([]record.Record, error)
	Update(ctx context.Context, table record.Table, id string, patch func(record.Record) error) (record.Record, error)
	Delete(ctx context.Context, table record.Table, id string) error
	Close() error
}

// localStrategy serves everything from the embedded store.
type localStrategy struct {
	owner string
	st    *store.Store
}

func (s *localStrategy) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	return s.st.Create(ctx, s.owner, rec)
}

func (s *localStrategy) Get(ctx context.Context, table record.Table, id string) (record.Record, error) {
	return s.st.Get(ctx, table, id)
}

func (s *localStrategy) List(ctx context.Context, table record.Table) ([]record.Record, error) {
	return s.st.List(ctx, table, s.owner)
}

func (s *localStrategy) Update(ctx context.Context, table record.Table, id string, patch func(record.Record) error) (record.Record, error) {
	return s.st.Update(ctx, table, id, patch)
}

func (s *localStrategy) Delete(ctx context.Context, table record.Table, id string) error {
	return s.st.Delete(ctx, table, id)
}

func (s *localStrategy) Close() error { return nil }

// remoteStrategy passes operations straight to the remote gateway. The
// local store is bypassed, so records are synced by construction.
type remoteStrategy struct {
	owner   string
	gateway remote.Gateway
}

func (s *remoteStrategy) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	rec.Meta().Stamp(s.owner, time.Now().UTC())
	rec.Meta().SyncStatus = record.StatusSynced
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s record: %w", rec.Table(), err)
	}
	if err := s.gateway.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *remoteStrategy) Get(ctx context.Context, table record.Table, id string) (record.Record, error) {
	recs, err := s.gateway.SelectAll(ctx, table, s.owner)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.Meta().ID == id {
			return rec, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *remoteStrategy) List(ctx context.Context, table record.Table) ([]record.Record, error) {
	return s.gateway.SelectAll(ctx, table, s.owner)
}

func (s *remoteStrategy) Update(ctx context.Context, table record.Table, id string, patch func(record.Record) error) (record.Record, error) {
	rec, err := s.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if err := patch(rec); err != nil {
		return nil, fmt.Errorf("failed to patch %s record %s: %w", table, id, err)
	}
	rec.Meta().Touch(time.Now().UTC())
	rec.Meta().SyncStatus = record.StatusSynced
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s record: %w", table, err)
	}
	if err := s.gateway.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *remoteStrategy) Delete(ctx context.Context, table record.Table, id string) error {
	return s.gateway.Delete(ctx, table, s.owner, id)
}

func (s *remoteStrategy) Close() error { return nil }

// syncedStrategy writes to the local store first and mirrors each
// mutation into the durable queue. The enqueue is the only coupling
// between the record store and the sync machinery.
type syncedStrategy struct {
	owner string
	st    *store.Store
	queue *store.Queue
}

func (s *syncedStrategy) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	created, err := s.st.Create(ctx, s.owner, rec)
	if err != nil {
		return nil, err
	}
	m, err := record.NewMutation(record.OpCreate, created)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, s.owner, m); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *syncedStrategy) Get(ctx context.Context, table record.Table, id string) (record.Record, error) {
	return s.st.Get(ctx, table, id)
}

func (s *syncedStrategy) List(ctx context.Context, table record.Table) ([]record.Record, error) {
	return s.st.List(ctx, table, s.owner)
}

func (s *syncedStrategy) Update(ctx context.Context, table record.Table, id string, patch func(record.Record) error) (record.Record, error) {
	updated, err := s.st.Update(ctx, table, id, patch)
	if err != nil {
		return nil, err
	}
	m, err := record.NewMutation(record.OpUpdate, updated)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, s.owner, m); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete queues the delete first, then removes the record locally. The
// ordering matters: once the row is gone the queue entry is the only
// remaining statement that this record ever existed.
func (s *syncedStrategy) Delete(ctx context.Context, table record.Table, id string) error {
	if _, err := s.st.Get(ctx, table, id); err != nil {
		return err
	}
	m, err := record.NewDelete(table, id)
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, s.owner, m); err != nil {
		return err
	}
	return s.st.Delete(ctx, table, id)
}

func (s *syncedStrategy) Close() error { return nil }
