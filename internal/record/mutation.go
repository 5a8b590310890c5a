package record

import "fmt"

// Op is the kind of mutation carried by a sync queue entry.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// IsValid reports whether op is one of the known operations.
func (op Op) IsValid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Mutation is a typed pending change bound for the remote store.
// For delete operations Record is nil; RecordID alone identifies the target.
type Mutation struct {
	Op       Op
	Table    Table
	RecordID string
	Record   Record
}

// NewMutation builds a create or update mutation from a record.
func NewMutation(op Op, rec Record) (Mutation, error) {
	if op == OpDelete {
		return Mutation{}, fmt.Errorf("delete mutations carry no record; use NewDelete")
	}
	if !op.IsValid() {
		return Mutation{}, fmt.Errorf("invalid op: %q", op)
	}
	if rec == nil {
		return Mutation{}, fmt.Errorf("%s mutation requires a record", op)
	}
	return Mutation{
		Op:       op,
		Table:    rec.Table(),
		RecordID: rec.Meta().ID,
		Record:   rec,
	}, nil
}

// NewDelete builds a delete mutation for the given table and record id.
func NewDelete(table Table, id string) (Mutation, error) {
	if !table.IsValid() {
		return Mutation{}, fmt.Errorf("unknown table: %q", table)
	}
	if id == "" {
		return Mutation{}, fmt.Errorf("delete mutation requires a record id")
	}
	return Mutation{Op: OpDelete, Table: table, RecordID: id}, nil
}

// Validate checks the mutation's shape before it is enqueued.
func (m Mutation) Validate() error {
	if !m.Op.IsValid() {
		return fmt.Errorf("invalid op: %q", m.Op)
	}
	if !m.Table.IsValid() {
		return fmt.Errorf("unknown table: %q", m.Table)
	}
	if m.RecordID == "" {
		return fmt.Errorf("record id is required")
	}
	switch m.Op {
	case OpDelete:
		if m.Record != nil {
			return fmt.Errorf("delete mutation must not carry a record")
		}
	default:
		if m.Record == nil {
			return fmt.Errorf("%s mutation requires a record", m.Op)
		}
		if m.Record.Meta().ID != m.RecordID {
			return fmt.Errorf("mutation id %q does not match record id %q", m.RecordID, m.Record.Meta().ID)
		}
	}
	return nil
}
