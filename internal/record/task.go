package record

import (
	"fmt"
	"time"
)

// Task statuses. Tasks move between board columns; Status tracks the
// coarse lifecycle independent of column placement.
const (
	TaskStatusOpen       = "open"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// Task is a single actionable item on the user's board.
// Fields are flat and independently updatable; UpdatedAt is the basis for
// last-write-wins comparison during the pull phase.
type Task struct {
	Base

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Priority    int    `json:"priority"` // 0-4 (0=critical, 4=backlog)

	// ColumnID places the task on a board column. Empty means unplaced.
	ColumnID string `json:"column_id,omitempty"`

	// Position orders the task within its column.
	Position int `json:"position,omitempty"`

	Tags []string `json:"tags,omitempty"`

	DueAt *time.Time `json:"due_at,omitempty"`
}

// Table implements Record.
func (t *Task) Table() Table { return TableTasks }

// Validate checks if the Task has valid field values.
func (t *Task) Validate() error {
	if err := t.validateMeta(); err != nil {
		return err
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if t.Priority < 0 || t.Priority > 4 {
		return fmt.Errorf("priority must be between 0 and 4 (got %d)", t.Priority)
	}
	if t.Status == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = TaskStatusOpen
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
}
