package record

import (
	"fmt"
	"time"
)

// Reminder schedules a notification for a task or a free-standing note.
type Reminder struct {
	Base

	Label string `json:"label"`

	// TaskID links the reminder to a task. Empty for free-standing reminders.
	TaskID string `json:"task_id,omitempty"`

	RemindAt time.Time `json:"remind_at"`

	// Fired is set once the reminder has been delivered locally.
	// Delivery state is device-local behavior but syncs so that a reminder
	// dismissed on one device stays dismissed everywhere.
	Fired bool `json:"fired,omitempty"`
}

// Table implements Record.
func (r *Reminder) Table() Table { return TableReminders }

// Validate checks if the Reminder has valid field values.
func (r *Reminder) Validate() error {
	if err := r.validateMeta(); err != nil {
		return err
	}
	if r.Label == "" {
		return fmt.Errorf("label is required")
	}
	if r.RemindAt.IsZero() {
		return fmt.Errorf("remind_at is required")
	}
	return nil
}

// Credential stores an owner-scoped secret for an external service the app
// talks to on the user's behalf (e.g. a calendar token). Secrets are opaque
// to the sync engine; it moves them like any other payload.
type Credential struct {
	Base

	Label    string `json:"label"`
	Service  string `json:"service"`
	Username string `json:"username,omitempty"`
	Secret   string `json:"secret"`
}

// Table implements Record.
func (c *Credential) Table() Table { return TableCredentials }

// Validate checks if the Credential has valid field values.
func (c *Credential) Validate() error {
	if err := c.validateMeta(); err != nil {
		return err
	}
	if c.Label == "" {
		return fmt.Errorf("label is required")
	}
	if c.Service == "" {
		return fmt.Errorf("service is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("secret is required")
	}
	return nil
}
