package record

import "fmt"

// Message roles within a chat session.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message belonging to a ChatSession.
type Message struct {
	Base

	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Body      string `json:"body"`
}

// Table implements Record.
func (m *Message) Table() Table { return TableMessages }

// Validate checks if the Message has valid field values.
func (m *Message) Validate() error {
	if err := m.validateMeta(); err != nil {
		return err
	}
	if m.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return fmt.Errorf("invalid role: %q", m.Role)
	}
	if m.Body == "" {
		return fmt.Errorf("body is required")
	}
	return nil
}

// BoardColumn is a named column on the task board.
type BoardColumn struct {
	Base

	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Table implements Record.
func (c *BoardColumn) Table() Table { return TableColumns }

// Validate checks if the BoardColumn has valid field values.
func (c *BoardColumn) Validate() error {
	if err := c.validateMeta(); err != nil {
		return err
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Position < 0 {
		return fmt.Errorf("position must be non-negative (got %d)", c.Position)
	}
	return nil
}

// ChatSession groups coaching chat messages under a titled conversation.
type ChatSession struct {
	Base

	Title string `json:"title"`

	// Archived sessions are hidden from the default listing but still sync.
	Archived bool `json:"archived,omitempty"`
}

// Table implements Record.
func (s *ChatSession) Table() Table { return TableChatSessions }

// Validate checks if the ChatSession has valid field values.
func (s *ChatSession) Validate() error {
	if err := s.validateMeta(); err != nil {
		return err
	}
	if s.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}
