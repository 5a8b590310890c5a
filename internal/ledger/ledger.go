// Package ledger stores unresolved sync conflicts and applies the
// user-chosen resolution.
//
// The reconciler is the only writer of conflicts; the ledger is the only
// component that deletes them, and only as the final step of a successful
// resolution. A conflict references exactly one record identifier and at
// most one open conflict exists per record at a time.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tessadoran/stride/internal/record"
	"github.com/tessadoran/stride/internal/remote"
	"github.com/tessadoran/stride/internal/store"
)

// ErrNotFound is returned when no conflict with the given id exists.
var ErrNotFound = errors.New("conflict not found")

// Strategy selects how a conflict is resolved.
type Strategy string

const (
	// KeepLocal pushes the local record to the remote store, overwriting it.
	KeepLocal Strategy = "local"
	// KeepRemote overwrites the local record with the remote snapshot.
	KeepRemote Strategy = "remote"
	// Merge combines both sides field by field and pushes the result.
	Merge Strategy = "merge"
)

// IsValid reports whether s names a known strategy.
func (s Strategy) IsValid() bool {
	switch s {
	case KeepLocal, KeepRemote, Merge:
		return true
	}
	return false
}

// Conflict captures a detected disagreement between an unsynced local edit
// and a changed remote record. It exists only while unresolved.
type Conflict struct {
	ID         string
	OwnerID    string
	Table      record.Table
	RecordID   string
	Type       record.Op // create, update or delete disagreement
	Local      record.Record
	Remote     record.Record
	DetectedAt time.Time
}

// Ledger persists conflicts in the local store's database and resolves
// them against the remote gateway.
type Ledger struct {
	st      *store.Store
	gateway remote.Gateway
	logger  *log.Logger
}

// New creates a Ledger sharing the store's database file.
//
// If logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, gateway remote.Gateway, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.New(os.Stderr, "[ledger] ", log.LstdFlags)
	}
	return &Ledger{st: st, gateway: gateway, logger: logger}
}

// Record stores a newly detected conflict.
//
// If an open conflict already exists for the record, the existing entry is
// kept: its id, local snapshot and detection time survive, and only the
// remote snapshot is refreshed so that a later KeepRemote resolution
// applies current remote state. A second disagreement never silently
// replaces the first.
func (l *Ledger) Record(ctx context.Context, c Conflict) error {
	if c.RecordID == "" {
		return fmt.Errorf("conflict requires a record id")
	}
	if !c.Table.IsValid() {
		return fmt.Errorf("unknown table: %q", c.Table)
	}
	if c.Local == nil || c.Remote == nil {
		return fmt.Errorf("conflict requires both snapshots")
	}

	localJSON, err := record.Encode(c.Local)
	if err != nil {
		return err
	}
	remoteJSON, err := record.Encode(c.Remote)
	if err != nil {
		return err
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.DetectedAt.IsZero() {
		c.DetectedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO conflicts (id, owner_id, tbl, record_id, conflict_type,
		local_snapshot, remote_snapshot, detected_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(record_id) DO UPDATE SET
		remote_snapshot = excluded.remote_snapshot
	`
	_, err = l.st.RawDB().ExecContext(ctx, query,
		c.ID,
		c.OwnerID,
		string(c.Table),
		c.RecordID,
		string(c.Type),
		string(localJSON),
		string(remoteJSON),
		c.DetectedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record conflict for %s/%s: %w", c.Table, c.RecordID, err)
	}

	l.logger.Printf("Conflict recorded: %s/%s (%s)", c.Table, c.RecordID, c.Type)
	return nil
}

// List returns all open conflicts for owner, oldest first.
func (l *Ledger) List(ctx context.Context, owner string) ([]Conflict, error) {
	query := `
	SELECT id, owner_id, tbl, record_id, conflict_type,
	       local_snapshot, remote_snapshot, detected_at
	FROM conflicts
	WHERE owner_id = ?
	ORDER BY detected_at ASC
	`
	rows, err := l.st.RawDB().QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conflicts: %w", err)
	}

	return conflicts, nil
}

// Get returns a single conflict by id.
// Returns ErrNotFound if no such conflict exists.
func (l *Ledger) Get(ctx context.Context, id string) (Conflict, error) {
	query := `
	SELECT id, owner_id, tbl, record_id, conflict_type,
	       local_snapshot, remote_snapshot, detected_at
	FROM conflicts
	WHERE id = ?
	`
	row := l.st.RawDB().QueryRowContext(ctx, query, id)
	c, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Conflict{}, ErrNotFound
	}
	if err != nil {
		return Conflict{}, err
	}
	return c, nil
}

// Open reports whether an unresolved conflict exists for the record.
func (l *Ledger) Open(ctx context.Context, table record.Table, recordID string) (bool, error) {
	var count int
	err := l.st.RawDB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conflicts WHERE tbl = ? AND record_id = ?`,
		string(table), recordID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check open conflict: %w", err)
	}
	return count > 0, nil
}

// Resolve applies the chosen strategy to a conflict.
//
// Resolution is not complete until the remote push (for KeepLocal and
// Merge) succeeds: on a push failure the local record is returned to
// pending, the conflict is kept, and the error is surfaced so the caller
// can retry.
//
// Returns ErrNotFound for an unknown conflict id.
func (l *Ledger) Resolve(ctx context.Context, id string, strategy Strategy) error {
	if !strategy.IsValid() {
		return fmt.Errorf("unknown resolution strategy: %q", strategy)
	}

	c, err := l.Get(ctx, id)
	if err != nil {
		return err
	}

	switch strategy {
	case KeepLocal:
		err = l.resolveKeepLocal(ctx, c)
	case KeepRemote:
		err = l.resolveKeepRemote(ctx, c)
	case Merge:
		err = l.resolveMerge(ctx, c)
	}
	if err != nil {
		return err
	}

	if err := l.delete(ctx, c.ID); err != nil {
		return err
	}

	l.logger.Printf("Conflict resolved: %s/%s (%s)", c.Table, c.RecordID, strategy)
	return nil
}

// resolveKeepLocal pushes the current local record to the remote store.
// The live record is read back rather than the snapshot so that edits made
// while the conflict sat open are not lost.
func (l *Ledger) resolveKeepLocal(ctx context.Context, c Conflict) error {
	rec, err := l.st.Get(ctx, c.Table, c.RecordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Local record was deleted while the conflict sat open; the
			// snapshot is the best remaining statement of local intent.
			rec = c.Local
		} else {
			return err
		}
	}

	if err := l.push(ctx, rec); err != nil {
		// Resolution incomplete: record stays pending, conflict stays open.
		if serr := l.st.SetStatus(ctx, c.Table, c.RecordID, record.StatusPending); serr != nil && !errors.Is(serr, store.ErrNotFound) {
			l.logger.Printf("WARNING: failed to restore pending status on %s/%s: %v", c.Table, c.RecordID, serr)
		}
		return fmt.Errorf("failed to push local record %s/%s: %w", c.Table, c.RecordID, err)
	}

	if err := l.st.MarkSynced(ctx, c.Table, c.RecordID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// resolveKeepRemote overwrites the local record with the remote snapshot.
// No network is involved, so this resolution cannot half-complete.
func (l *Ledger) resolveKeepRemote(ctx context.Context, c Conflict) error {
	rec, err := record.Clone(c.Remote)
	if err != nil {
		return err
	}
	rec.Meta().SyncStatus = record.StatusSynced
	return l.st.Put(ctx, rec)
}

// resolveMerge merges both snapshots, installs the result locally as
// synced, and pushes it to the remote store.
func (l *Ledger) resolveMerge(ctx context.Context, c Conflict) error {
	merged, err := mergeRecords(c.Local, c.Remote)
	if err != nil {
		return err
	}
	merged.Meta().SyncStatus = record.StatusSynced

	if err := l.st.Put(ctx, merged); err != nil {
		return err
	}

	if err := l.push(ctx, merged); err != nil {
		if serr := l.st.SetStatus(ctx, c.Table, c.RecordID, record.StatusPending); serr != nil && !errors.Is(serr, store.ErrNotFound) {
			l.logger.Printf("WARNING: failed to restore pending status on %s/%s: %v", c.Table, c.RecordID, serr)
		}
		return fmt.Errorf("failed to push merged record %s/%s: %w", c.Table, c.RecordID, err)
	}
	return nil
}

// push upserts a record remotely. Insert is an id-keyed upsert, so it
// covers both the record-exists and record-missing cases.
func (l *Ledger) push(ctx context.Context, rec record.Record) error {
	return l.gateway.Insert(ctx, rec)
}

func (l *Ledger) delete(ctx context.Context, id string) error {
	res, err := l.st.RawDB().ExecContext(ctx, `DELETE FROM conflicts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conflict %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConflict(row rowScanner) (Conflict, error) {
	var (
		c                     Conflict
		tbl, typ              string
		localJSON, remoteJSON string
		detectedAt            string
	)
	err := row.Scan(&c.ID, &c.OwnerID, &tbl, &c.RecordID, &typ,
		&localJSON, &remoteJSON, &detectedAt)
	if err != nil {
		return Conflict{}, err
	}

	c.Table = record.Table(tbl)
	c.Type = record.Op(typ)

	if c.Local, err = record.Decode(c.Table, []byte(localJSON)); err != nil {
		return Conflict{}, fmt.Errorf("conflict %s: %w", c.ID, err)
	}
	if c.Remote, err = record.Decode(c.Table, []byte(remoteJSON)); err != nil {
		return Conflict{}, fmt.Errorf("conflict %s: %w", c.ID, err)
	}

	t, err := time.Parse(time.RFC3339Nano, detectedAt)
	if err != nil {
		return Conflict{}, fmt.Errorf("conflict %s: failed to parse detected_at: %w", c.ID, err)
	}
	c.DetectedAt = t

	return c, nil
}
