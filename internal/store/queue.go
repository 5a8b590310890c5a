package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tessadoran/stride/internal/record"
)

// Entry is one durable pending mutation in the sync queue.
type Entry struct {
	// ID is the queue sequence number; entries are processed in ID order.
	ID int64

	OwnerID    string
	Mutation   record.Mutation
	EnqueuedAt time.Time
}

// Queue is the append-only ledger of pending mutations, stored in the same
// database file as the records it mirrors. The reconciler drains it in
// strict FIFO order; a failed entry stays queued for the next run.
type Queue struct {
	st *Store
}

// NewQueue returns a Queue backed by the given store's database.
func NewQueue(st *Store) *Queue {
	return &Queue{st: st}
}

// Enqueue appends a mutation for owner to the queue.
func (q *Queue) Enqueue(ctx context.Context, owner string, m record.Mutation) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid mutation: %w", err)
	}

	var payload sql.NullString
	if m.Record != nil {
		data, err := record.Encode(m.Record)
		if err != nil {
			return err
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}

	query := `
	INSERT INTO sync_queue (owner_id, tbl, op, record_id, payload, enqueued_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := q.st.conn.ExecContext(ctx, query,
		owner,
		string(m.Table),
		string(m.Op),
		m.RecordID,
		payload,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s mutation: %w", m.Op, m.Table, err)
	}
	return nil
}

// Pending returns all queued entries for owner in enqueue order.
// The snapshot is taken at call time; entries enqueued afterwards belong to
// the next run.
func (q *Queue) Pending(ctx context.Context, owner string) ([]Entry, error) {
	query := `
	SELECT id, owner_id, tbl, op, record_id, payload, enqueued_at
	FROM sync_queue
	WHERE owner_id = ?
	ORDER BY id ASC
	`
	rows, err := q.st.conn.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync queue: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync queue: %w", err)
	}

	return entries, nil
}

// Remove deletes a processed entry from the queue.
// Returns ErrNotFound if no entry with that id exists.
func (q *Queue) Remove(ctx context.Context, entryID int64) error {
	res, err := q.st.conn.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("failed to remove queue entry %d: %w", entryID, err)
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

// Len returns the number of queued entries for owner.
func (q *Queue) Len(ctx context.Context, owner string) (int, error) {
	var count int
	err := q.st.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE owner_id = ?`, owner).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sync queue: %w", err)
	}
	return count, nil
}

// HasPendingDelete reports whether a delete mutation for the given record
// is still queued. The pull phase consults this so a remote record whose
// local delete has not been pushed yet is not resurrected.
func (q *Queue) HasPendingDelete(ctx context.Context, table record.Table, id string) (bool, error) {
	var count int
	err := q.st.conn.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM sync_queue
	WHERE tbl = ? AND record_id = ? AND op = ?`,
		string(table), id, string(record.OpDelete)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check pending delete: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry reconstructs a queue entry, decoding the payload into the
// concrete record type for its table.
func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry      Entry
		tbl, op    string
		recordID   string
		payload    sql.NullString
		enqueuedAt string
	)
	if err := row.Scan(&entry.ID, &entry.OwnerID, &tbl, &op, &recordID, &payload, &enqueuedAt); err != nil {
		return Entry{}, fmt.Errorf("failed to scan queue entry: %w", err)
	}

	entry.Mutation = record.Mutation{
		Op:       record.Op(op),
		Table:    record.Table(tbl),
		RecordID: recordID,
	}
	if payload.Valid {
		rec, err := record.Decode(entry.Mutation.Table, []byte(payload.String))
		if err != nil {
			return Entry{}, fmt.Errorf("queue entry %d: %w", entry.ID, err)
		}
		entry.Mutation.Record = rec
	}

	t, err := time.Parse(time.RFC3339Nano, enqueuedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("queue entry %d: failed to parse enqueued_at: %w", entry.ID, err)
	}
	entry.EnqueuedAt = t

	if err := entry.Mutation.Validate(); err != nil {
		return Entry{}, fmt.Errorf("queue entry %d: %w", entry.ID, err)
	}
	return entry, nil
}
