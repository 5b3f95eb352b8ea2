package handler

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"supportchat-backend/internal/model"
	"supportchat-backend/internal/service"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type WSHandler struct {
	hub     *service.Hub
	authSvc *service.AuthService
	chatSvc *service.ChatService
}

func NewWSHandler(hub *service.Hub, authSvc *service.AuthService, chatSvc *service.ChatService) *WSHandler {
	return &WSHandler{hub: hub, authSvc: authSvc, chatSvc: chatSvc}
}

func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		token := c.Query("token")
		if token == "" {
			return c.Status(401).JSON(fiber.Map{"error": "token required"})
		}

		ident, err := h.authSvc.Verify(token)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
		}

		c.Locals("subject_id", ident.SubjectID)
		c.Locals("subject_kind", ident.SubjectKind)
		return websocket.New(h.handleConnection)(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *WSHandler) handleConnection(c *websocket.Conn) {
	subjectID, _ := c.Locals("subject_id").(string)
	subjectKind, _ := c.Locals("subject_kind").(string)

	client := h.hub.Connect(subjectID, subjectKind)
	defer h.hub.Disconnect(client.ID)

	// Every connection gets its own identity room. Session rooms must be
	// joined explicitly, and rejoined after every reconnect; until then
	// the client lives off polling alone.
	if subjectKind == model.SenderAdmin {
		_ = h.hub.Join(client.ID, service.AdminRoom(subjectID))
	} else {
		_ = h.hub.Join(client.ID, service.UserRoom(subjectID))
	}

	// Writer goroutine
	go func() {
		defer c.Close()
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader loop
	c.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}

		c.SetReadDeadline(time.Now().Add(60 * time.Second))

		var event model.WSEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			continue
		}

		switch event.Type {
		case "ping":
			h.send(client, "pong", nil)
		case "join":
			room := roomFromEvent(event.Data)
			if room == "" {
				continue
			}
			if !h.authorizeRoom(subjectID, subjectKind, room) {
				h.send(client, "join_denied", fiber.Map{"room": room})
				continue
			}
			if err := h.hub.Join(client.ID, room); err == nil {
				h.send(client, "joined", fiber.Map{"room": room})
			}
		case "leave":
			if room := roomFromEvent(event.Data); room != "" {
				h.hub.Leave(client.ID, room)
			}
		default:
			log.Printf("WS: unknown event type %s from %s %s", event.Type, subjectKind, subjectID)
		}
	}
}

func (h *WSHandler) send(client *service.HubClient, eventType string, payload any) {
	data, _ := json.Marshal(payload)
	frame, err := json.Marshal(model.WSEvent{Type: eventType, Data: data})
	if err != nil {
		return
	}
	select {
	case client.Send <- frame:
	default:
	}
}

func roomFromEvent(data json.RawMessage) string {
	var req struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return ""
	}
	return req.Room
}

// authorizeRoom keeps connections out of rooms that are not theirs:
// identity rooms must match the subject, and customers can only join
// session rooms for their own sessions.
func (h *WSHandler) authorizeRoom(subjectID, subjectKind, room string) bool {
	switch {
	case strings.HasPrefix(room, "admin:"):
		return subjectKind == model.SenderAdmin && room == service.AdminRoom(subjectID)
	case strings.HasPrefix(room, "user:"):
		return subjectKind == model.SenderCustomer && room == service.UserRoom(subjectID)
	case strings.HasPrefix(room, "session:"):
		if subjectKind == model.SenderAdmin {
			return true
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		sess, err := h.chatSvc.Session(ctx, strings.TrimPrefix(room, "session:"))
		if err != nil {
			return false
		}
		return sess.CustomerID == subjectID
	default:
		return false
	}
}
