package handler

import (
	"errors"
	"io"
	"log"
	"strconv"

	"supportchat-backend/internal/middleware"
	"supportchat-backend/internal/model"
	"supportchat-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ChatHandler struct {
	chatSvc *service.ChatService
	fileSvc *service.FileService
}

func NewChatHandler(chatSvc *service.ChatService, fileSvc *service.FileService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc, fileSvc: fileSvc}
}

// StartSession finds or creates the open session for a (customer, admin)
// pair. POST /api/v1/chat/sessions
func (h *ChatHandler) StartSession(c *fiber.Ctx) error {
	var req model.StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	ident := middleware.Identity(c)
	if ident.SubjectKind == model.SenderCustomer {
		// Customers can only open sessions for themselves.
		req.CustomerID = ident.SubjectID
	}
	if req.CustomerID == "" || req.AdminID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "customer_id and admin_id are required"})
	}

	sess, created, err := h.chatSvc.StartOrResume(c.Context(), req.CustomerID, req.AdminID)
	if err != nil {
		return chatError(c, err)
	}

	status := 200
	if created {
		status = 201
	}
	return c.Status(status).JSON(model.StartSessionResponse{Session: sess, Created: created})
}

// SendMessage appends to the session log.
// POST /api/v1/chat/sessions/:id/messages
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req model.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	msg, err := h.chatSvc.SendMessage(c.Context(), c.Params("id"), middleware.Identity(c), &req)
	if err != nil {
		return chatError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": msg})
}

// ListMessages returns the authoritative ordered log, optionally only
// ids after since_id. GET /api/v1/chat/sessions/:id/messages?since_id=
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	sinceID, _ := strconv.ParseInt(c.Query("since_id", "0"), 10, 64)

	msgs, err := h.chatSvc.ListMessages(c.Context(), c.Params("id"), middleware.Identity(c), sinceID)
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

// MarkRead flips the read flag on the other party's messages.
// POST /api/v1/chat/sessions/:id/read
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	updated, err := h.chatSvc.MarkRead(c.Context(), c.Params("id"), middleware.Identity(c))
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(fiber.Map{"updated": updated})
}

// CloseSession ends a conversation; admin only, idempotent.
// POST /api/v1/chat/sessions/:id/close
func (h *ChatHandler) CloseSession(c *fiber.Ctx) error {
	sess, err := h.chatSvc.Close(c.Context(), c.Params("id"))
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(fiber.Map{"session": sess})
}

// UploadAttachment validates and stores a file, returning the ref to put
// on a follow-up message. POST /api/v1/chat/attachments
func (h *ChatHandler) UploadAttachment(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "file is required"})
	}
	if fileHeader.Size > service.MaxAttachmentSize {
		return chatError(c, service.ErrFileTooLarge)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "failed to read file"})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "failed to read file"})
	}

	resp, err := h.fileSvc.Store(c.Context(), data)
	if err != nil {
		return chatError(c, err)
	}

	log.Printf("[Chat] Stored attachment %s (%s, %d bytes)", resp.FileRef, resp.ContentType, resp.Size)
	return c.Status(201).JSON(resp)
}

func chatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, service.ErrInactiveAdmin):
		return c.Status(403).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrSessionClosed):
		return c.Status(409).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		return c.Status(401).JSON(fiber.Map{"error": "unauthorized"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.Status(401).JSON(fiber.Map{"error": "invalid credentials"})
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidMessageType),
		errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrFileType):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Printf("[Chat] internal error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
}
