package sync

import (
	"testing"
	"time"

	"github.com/tessadoran/stride/internal/record"
)

// reconcileTask builds one side of a reconcile pairing. The id is fixed so
// that local and remote fixtures describe the same logical record; Stamp
// keeps a pre-assigned id.
func reconcileTask(t *testing.T, status record.SyncStatus) *record.Task {
	t.Helper()
	task := &record.Task{Title: "base"}
	task.ID = "11111111-2222-3333-4444-555555555555"
	task.SetDefaults()
	task.Stamp("tessa", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	task.SyncStatus = status
	return task
}

func TestReconcile(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		local        func(t *testing.T) record.Record
		remote       func(t *testing.T) record.Record
		deleteQueued bool
		want         pullDecision
	}{
		{
			name:   "no local record",
			local:  func(t *testing.T) record.Record { return nil },
			remote: func(t *testing.T) record.Record { return reconcileTask(t, record.StatusSynced) },
			want:   decideInsert,
		},
		{
			name:  "synced local, newer remote",
			local: func(t *testing.T) record.Record { return reconcileTask(t, record.StatusSynced) },
			remote: func(t *testing.T) record.Record {
				rem := reconcileTask(t, record.StatusSynced)
				rem.Title = "newer"
				rem.Touch(base.Add(time.Minute))
				return rem
			},
			want: decideOverwrite,
		},
		{
			name:  "synced local, stale remote",
			local: func(t *testing.T) record.Record { return reconcileTask(t, record.StatusSynced) },
			remote: func(t *testing.T) record.Record {
				rem := reconcileTask(t, record.StatusSynced)
				rem.Title = "old news"
				rem.UpdatedAt = base.Add(-time.Minute)
				return rem
			},
			want: decideSkip,
		},
		{
			name:  "pending local, diverged remote",
			local: func(t *testing.T) record.Record { return reconcileTask(t, record.StatusPending) },
			remote: func(t *testing.T) record.Record {
				rem := reconcileTask(t, record.StatusSynced)
				rem.Title = "diverged"
				rem.Touch(base.Add(time.Minute))
				return rem
			},
			want: decideConflict,
		},
		{
			name:  "pending local, remote echoes same content",
			local: func(t *testing.T) record.Record { return reconcileTask(t, record.StatusPending) },
			remote: func(t *testing.T) record.Record {
				return reconcileTask(t, record.StatusSynced)
			},
			want: decideMarkSynced,
		},
		{
			name:  "queued delete outranks remote",
			local: func(t *testing.T) record.Record { return nil },
			remote: func(t *testing.T) record.Record {
				return reconcileTask(t, record.StatusSynced)
			},
			deleteQueued: true,
			want:         decideSkip,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reconcile(tt.local(t), tt.remote(t), tt.deleteQueued)
			if got != tt.want {
				t.Errorf("reconcile() = %v, want %v", got, tt.want)
			}
		})
	}
}
