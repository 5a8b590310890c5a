// Package record defines the typed, owned entities persisted by the local
// store and reconciled against the remote store.
//
// Every record embeds Base, which carries the identity and sync bookkeeping
// fields shared by all tables. Records are identified by client-assigned
// UUIDs: the identifier is chosen at local creation time and never changes,
// even after the remote store acknowledges the record.
package record

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncStatus tags a record with its relationship to the remote store.
type SyncStatus string

const (
	// StatusSynced means local state matches the last known remote state.
	StatusSynced SyncStatus = "synced"
	// StatusPending means the record has local edits not yet pushed.
	StatusPending SyncStatus = "pending"
	// StatusConflict means a pull observed divergent remote state while
	// local edits were still pending.
	StatusConflict SyncStatus = "conflict"
)

// IsValid reports whether s is one of the known sync states.
func (s SyncStatus) IsValid() bool {
	switch s {
	case StatusSynced, StatusPending, StatusConflict:
		return true
	}
	return false
}

// Table identifies one of the persisted entity tables.
type Table string

const (
	TableTasks        Table = "tasks"
	TableMessages     Table = "messages"
	TableColumns      Table = "board_columns"
	TableReminders    Table = "reminders"
	TableChatSessions Table = "chat_sessions"
	TableCredentials  Table = "credentials"
)

// Tables returns the closed set of entity tables in a fixed order.
// The reconciler iterates this set during the pull phase; adding a table
// here is the single step needed to bring a new entity under sync.
func Tables() []Table {
	return []Table{
		TableTasks,
		TableMessages,
		TableColumns,
		TableReminders,
		TableChatSessions,
		TableCredentials,
	}
}

// IsValid reports whether t names a known table.
func (t Table) IsValid() bool {
	for _, known := range Tables() {
		if t == known {
			return true
		}
	}
	return false
}

// Base carries the identity and sync bookkeeping fields embedded in every
// record type. Timestamps are RFC3339 and non-decreasing per record.
//
// The type is embedded, so it cannot share a name with the Meta accessor
// it promotes: a field named Meta would shadow the method and no record
// type would satisfy the Record interface.
type Base struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	SyncStatus SyncStatus `json:"sync_status"`
}

// Meta returns the embedded metadata. It exists so that every record type
// satisfies the Record interface through embedding.
func (b *Base) Meta() *Base { return b }

// Stamp initializes identity and timestamps for a freshly created record.
// The identifier is assigned here, on the client, and is final.
func (b *Base) Stamp(owner string, now time.Time) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.OwnerID = owner
	b.CreatedAt = now
	b.UpdatedAt = now
	b.SyncStatus = StatusPending
}

// Touch refreshes UpdatedAt, keeping it monotonically non-decreasing.
func (b *Base) Touch(now time.Time) {
	if now.After(b.UpdatedAt) {
		b.UpdatedAt = now
	}
}

// validateMeta checks the fields every record shares.
func (b *Base) validateMeta() error {
	if b.ID == "" {
		return fmt.Errorf("id is required")
	}
	if b.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if b.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if b.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	if !b.SyncStatus.IsValid() {
		return fmt.Errorf("invalid sync_status: %q", b.SyncStatus)
	}
	return nil
}

// Record is implemented by every persisted entity type.
type Record interface {
	// Meta returns the shared identity and sync bookkeeping fields.
	Meta() *Base
	// Table returns the table this record belongs to.
	Table() Table
	// Validate checks field values before the record is persisted.
	Validate() error
}

// New returns a zero value of the record type stored in the given table.
// It is the exhaustive dispatch point for the closed table set: payloads
// read back from the queue, the conflict ledger, or the remote store are
// decoded into the concrete type returned here, never into untyped maps.
func New(table Table) (Record, error) {
	switch table {
	case TableTasks:
		return &Task{}, nil
	case TableMessages:
		return &Message{}, nil
	case TableColumns:
		return &BoardColumn{}, nil
	case TableReminders:
		return &Reminder{}, nil
	case TableChatSessions:
		return &ChatSession{}, nil
	case TableCredentials:
		return &Credential{}, nil
	default:
		return nil, fmt.Errorf("unknown table: %q", table)
	}
}

// Encode marshals a record to its JSON payload form.
func Encode(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s record: %w", rec.Table(), err)
	}
	return data, nil
}

// Decode unmarshals a JSON payload into the concrete type for table.
func Decode(table Table, payload []byte) (Record, error) {
	rec, err := New(table)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("failed to parse %s payload: %w", table, err)
	}
	return rec, nil
}

// Clone returns a deep copy of rec by round-tripping its JSON form.
func Clone(rec Record) (Record, error) {
	data, err := Encode(rec)
	if err != nil {
		return nil, err
	}
	return Decode(rec.Table(), data)
}

// Equivalent reports whether two records of the same table carry the same
// field values, ignoring sync status. It is used by the pull phase to tell
// a genuine remote change apart from an echo of local state.
func Equivalent(a, b Record) bool {
	if a.Table() != b.Table() {
		return false
	}
	am, bm := *a.Meta(), *b.Meta()
	am.SyncStatus, bm.SyncStatus = "", ""
	ac, err := Clone(a)
	if err != nil {
		return false
	}
	bc, err := Clone(b)
	if err != nil {
		return false
	}
	*ac.Meta() = am
	*bc.Meta() = bm
	ad, err1 := Encode(ac)
	bd, err2 := Encode(bc)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(ad) == string(bd)
}
