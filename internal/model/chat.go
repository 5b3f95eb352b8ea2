package model

import "time"

// Session status machine: waiting -> active on the first admin message,
// either -> closed by explicit admin action. Closed is terminal; further
// contact creates a new session.
const (
	SessionWaiting = "waiting"
	SessionActive  = "active"
	SessionClosed  = "closed"
)

const (
	SenderCustomer = "customer"
	SenderAdmin    = "admin"
)

const (
	MessageText  = "text"
	MessageImage = "image"
	MessageFile  = "file"
)

type ChatSession struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	AdminID    string    `json:"admin_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *ChatSession) IsClosed() bool {
	return s.Status == SessionClosed
}

type ChatMessage struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	SenderKind  string    `json:"sender_kind"`
	AdminID     *string   `json:"admin_id,omitempty"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"`
	FileRef     *string   `json:"file_ref,omitempty"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Before reports whether m precedes other in the authoritative
// (created_at, id) order. Equal timestamps break by ascending id.
func (m *ChatMessage) Before(other *ChatMessage) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// SessionSummary is one console row: the session plus its triage state.
type SessionSummary struct {
	Session       ChatSession `json:"session"`
	CustomerName  string      `json:"customer_name"`
	LastMessage   string      `json:"last_message"`
	LastMessageAt *time.Time  `json:"last_message_at,omitempty"`
	Preview       string      `json:"preview"`
	Unread        int         `json:"unread"`
}
