package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tessadoran/stride/internal/record"
)

// ErrNotFound is returned when a record does not exist in the store.
var ErrNotFound = errors.New("record not found")

// Get retrieves a single record by table and id.
// Returns ErrNotFound if the record does not exist.
func (s *Store) Get(ctx context.Context, table record.Table, id string) (record.Record, error) {
	if !table.IsValid() {
		return nil, fmt.Errorf("unknown table: %q", table)
	}

	query := fmt.Sprintf(`SELECT payload FROM %s WHERE id = ?`, table)
	var payload string
	err := s.conn.QueryRowContext(ctx, query, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record %s: %w", table, id, err)
	}

	return record.Decode(table, []byte(payload))
}

// List retrieves all records in a table belonging to owner, in creation
// order (rowid order, which matches insertion for these tables).
func (s *Store) List(ctx context.Context, table record.Table, owner string) ([]record.Record, error) {
	if !table.IsValid() {
		return nil, fmt.Errorf("unknown table: %q", table)
	}

	query := fmt.Sprintf(`SELECT payload FROM %s WHERE owner_id = ? ORDER BY rowid ASC`, table)
	rows, err := s.conn.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", table, err)
	}
	defer rows.Close()

	var recs []record.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", table, err)
		}
		rec, err := record.Decode(table, []byte(payload))
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s records: %w", table, err)
	}

	return recs, nil
}

// ListTasksByStatus lists tasks for owner filtered by task status.
// The status lives inside the JSON payload; json_extract keeps the filter
// in SQL instead of loading every row.
func (s *Store) ListTasksByStatus(ctx context.Context, owner, status string) ([]*record.Task, error) {
	query := `
	SELECT payload FROM tasks
	WHERE owner_id = ? AND json_extract(payload, '$.status') = ?
	ORDER BY rowid ASC
	`
	rows, err := s.conn.QueryContext(ctx, query, owner, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by status: %w", err)
	}
	defer rows.Close()

	var tasks []*record.Task
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		rec, err := record.Decode(record.TableTasks, []byte(payload))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, rec.(*record.Task))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// Create persists a new record for owner. The store assigns the identifier
// and timestamps and marks the record pending; the caller's Meta fields are
// overwritten.
func (s *Store) Create(ctx context.Context, owner string, rec record.Record) (record.Record, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec.Meta().Stamp(owner, time.Now().UTC())
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s record: %w", rec.Table(), err)
	}

	if err := s.put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update applies patch to an existing record. The patch function receives
// the current record and mutates it in place; the store then refreshes
// updated_at and marks the record pending, unless the patch explicitly set
// sync_status to synced.
//
// Returns ErrNotFound if the record does not exist.
func (s *Store) Update(ctx context.Context, table record.Table, id string, patch func(record.Record) error) (record.Record, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec, err := s.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}

	prior := rec.Meta().SyncStatus
	if err := patch(rec); err != nil {
		return nil, fmt.Errorf("failed to patch %s record %s: %w", table, id, err)
	}
	if rec.Meta().ID != id {
		return nil, fmt.Errorf("patch must not change the record id")
	}

	rec.Meta().Touch(time.Now().UTC())
	// A patch that explicitly flips the status to synced is the reconciler
	// acknowledging a push; everything else dirties the record.
	if rec.Meta().SyncStatus == prior || !rec.Meta().SyncStatus.IsValid() {
		rec.Meta().SyncStatus = record.StatusPending
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s record: %w", table, err)
	}

	if err := s.put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record from the store.
// Returns ErrNotFound if the record does not exist.
func (s *Store) Delete(ctx context.Context, table record.Table, id string) error {
	if !table.IsValid() {
		return fmt.Errorf("unknown table: %q", table)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table)
	res, err := s.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s record %s: %w", table, id, err)
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

// Put writes a record verbatim, preserving its Meta fields as given.
// The pull phase uses this to install remote records without re-stamping
// them; conflict resolution uses it to install merged records.
func (s *Store) Put(ctx context.Context, rec record.Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid %s record: %w", rec.Table(), err)
	}
	return s.put(ctx, rec)
}

// MarkSynced flips a record's sync_status to synced without touching
// updated_at. Called by the reconciler after a successful push.
// Returns ErrNotFound if the record does not exist.
func (s *Store) MarkSynced(ctx context.Context, table record.Table, id string) error {
	return s.SetStatus(ctx, table, id, record.StatusSynced)
}

// SetStatus rewrites a record's sync_status in both the column and the
// payload without touching updated_at.
func (s *Store) SetStatus(ctx context.Context, table record.Table, id string, status record.SyncStatus) error {
	if !table.IsValid() {
		return fmt.Errorf("unknown table: %q", table)
	}
	if !status.IsValid() {
		return fmt.Errorf("invalid sync_status: %q", status)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := fmt.Sprintf(`
	UPDATE %s SET
		sync_status = ?,
		payload = json_set(payload, '$.sync_status', ?)
	WHERE id = ?`, table)

	res, err := s.conn.ExecContext(ctx, query, string(status), string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set status on %s record %s: %w", table, id, err)
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

// put upserts a record row. Callers hold writeMu.
func (s *Store) put(ctx context.Context, rec record.Record) error {
	payload, err := record.Encode(rec)
	if err != nil {
		return err
	}

	m := rec.Meta()
	query := fmt.Sprintf(`
	INSERT INTO %s (id, owner_id, created_at, updated_at, sync_status, payload)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id = excluded.owner_id,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		sync_status = excluded.sync_status,
		payload = excluded.payload
	`, rec.Table())

	_, err = s.conn.ExecContext(ctx, query,
		m.ID,
		m.OwnerID,
		m.CreatedAt.Format(time.RFC3339Nano),
		m.UpdatedAt.Format(time.RFC3339Nano),
		string(m.SyncStatus),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %s record %s: %w", rec.Table(), m.ID, err)
	}
	return nil
}
