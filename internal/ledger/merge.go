package ledger

import (
	"fmt"
	"time"

	"github.com/tessadoran/stride/internal/record"
)

// mergeRecords applies the deterministic field-level merge policy:
// textual fields prefer the local value when non-empty, falling back to
// the remote value; updated_at takes the later of the two sides.
//
// This is intentionally a simple policy, not a general three-way merge:
// there is no common ancestor to diff against, and for personal task data
// "keep what I typed, fill gaps from the other device" resolves the
// overwhelming majority of conflicts correctly.
func mergeRecords(local, remote record.Record) (record.Record, error) {
	if local.Table() != remote.Table() {
		return nil, fmt.Errorf("cannot merge %s record with %s record", local.Table(), remote.Table())
	}

	merged, err := record.Clone(local)
	if err != nil {
		return nil, err
	}

	switch m := merged.(type) {
	case *record.Task:
		r := remote.(*record.Task)
		m.Title = pickText(m.Title, r.Title)
		m.Description = pickText(m.Description, r.Description)
		m.Status = pickText(m.Status, r.Status)
		m.ColumnID = pickText(m.ColumnID, r.ColumnID)
		if len(m.Tags) == 0 {
			m.Tags = r.Tags
		}
		if m.DueAt == nil {
			m.DueAt = r.DueAt
		}
	case *record.Message:
		r := remote.(*record.Message)
		m.Body = pickText(m.Body, r.Body)
	case *record.BoardColumn:
		r := remote.(*record.BoardColumn)
		m.Name = pickText(m.Name, r.Name)
	case *record.Reminder:
		r := remote.(*record.Reminder)
		m.Label = pickText(m.Label, r.Label)
		if m.RemindAt.IsZero() {
			m.RemindAt = r.RemindAt
		}
	case *record.ChatSession:
		r := remote.(*record.ChatSession)
		m.Title = pickText(m.Title, r.Title)
	case *record.Credential:
		r := remote.(*record.Credential)
		m.Label = pickText(m.Label, r.Label)
		m.Username = pickText(m.Username, r.Username)
		m.Secret = pickText(m.Secret, r.Secret)
	default:
		return nil, fmt.Errorf("no merge policy for table %s", merged.Table())
	}

	merged.Meta().UpdatedAt = maxTime(local.Meta().UpdatedAt, remote.Meta().UpdatedAt)
	return merged, nil
}

// pickText prefers the local value when it is non-empty.
func pickText(local, remote string) string {
	if local != "" {
		return local
	}
	return remote
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
