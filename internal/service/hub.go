package service

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"supportchat-backend/internal/model"

	"github.com/google/uuid"
)

// Room keys. A connection receives an event when it has joined the room
// the event targets.
func SessionRoom(sessionID string) string { return "session:" + sessionID }
func UserRoom(customerID string) string   { return "user:" + customerID }
func AdminRoom(adminID string) string     { return "admin:" + adminID }

// HubClient is one registered connection. Send is drained by the
// transport's writer pump; when it is full the event is dropped, never
// retried. Delivery here is an optimization, the polling path is the
// guarantee.
type HubClient struct {
	ID          string
	SubjectID   string
	SubjectKind string
	Send        chan []byte

	rooms map[string]bool
}

// Hub holds the process-local connection and room maps. All mutation
// goes through one mutex; there is no cross-process fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*HubClient
	rooms   map[string]map[string]*HubClient
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*HubClient),
		rooms:   make(map[string]map[string]*HubClient),
	}
}

func (h *Hub) Connect(subjectID, subjectKind string) *HubClient {
	client := &HubClient{
		ID:          uuid.NewString(),
		SubjectID:   subjectID,
		SubjectKind: subjectKind,
		Send:        make(chan []byte, 256),
		rooms:       make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("WS: %s %s connected (total: %d)", subjectKind, subjectID, total)
	return client
}

// Disconnect leaves every joined room and closes the send channel. A
// reconnecting client gets a fresh id and must rejoin its rooms before
// push delivery resumes.
func (h *Hub) Disconnect(clientID string) {
	h.mu.Lock()
	client, ok := h.clients[clientID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, clientID)
	for key := range client.rooms {
		h.removeFromRoom(client, key)
	}
	total := len(h.clients)
	h.mu.Unlock()

	close(client.Send)
	log.Printf("WS: %s %s disconnected (total: %d)", client.SubjectKind, client.SubjectID, total)
}

func (h *Hub) Join(clientID, roomKey string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return fmt.Errorf("unknown connection %s", clientID)
	}
	room, ok := h.rooms[roomKey]
	if !ok {
		room = make(map[string]*HubClient)
		h.rooms[roomKey] = room
	}
	room[clientID] = client
	client.rooms[roomKey] = true
	return nil
}

func (h *Hub) Leave(clientID, roomKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	delete(client.rooms, roomKey)
	h.removeFromRoom(client, roomKey)
}

// removeFromRoom requires h.mu held.
func (h *Hub) removeFromRoom(client *HubClient, roomKey string) {
	room, ok := h.rooms[roomKey]
	if !ok {
		return
	}
	delete(room, client.ID)
	if len(room) == 0 {
		delete(h.rooms, roomKey)
	}
}

// Broadcast sends an event to every connection joined to roomKey.
// Best-effort: marshal failures and full send buffers drop the event.
func (h *Hub) Broadcast(roomKey, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	frame, err := json.Marshal(model.WSEvent{Type: event, Data: data})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[roomKey] {
		select {
		case client.Send <- frame:
		default:
		}
	}
}

func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize is used by tests and diagnostics.
func (h *Hub) RoomSize(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey])
}
