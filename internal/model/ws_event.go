package model

import "encoding/json"

type WSEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Push event types carried over the real-time channel. All of them are
// best-effort hints; the polling path is authoritative.
const (
	EventMessage        = "message"
	EventPresence       = "presence"
	EventSessionStarted = "session_started"
	EventSessionClosed  = "session_closed"
	EventRead           = "read"
)

type PresencePayload struct {
	AdminID    string `json:"admin_id"`
	IsOnline   bool   `json:"is_online"`
	LastSeenAt string `json:"last_seen_at,omitempty"`
}

type ReadPayload struct {
	SessionID string `json:"session_id"`
	Actor     string `json:"actor"`
	Updated   int64  `json:"updated"`
}
