package handler

import (
	"supportchat-backend/internal/middleware"
	"supportchat-backend/internal/model"
	"supportchat-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	authSvc     *service.AuthService
	presenceSvc *service.PresenceService
	console     *service.Console
}

func NewAdminHandler(authSvc *service.AuthService, presenceSvc *service.PresenceService, console *service.Console) *AdminHandler {
	return &AdminHandler{authSvc: authSvc, presenceSvc: presenceSvc, console: console}
}

// Login authenticates an admin. POST /api/v1/auth/login
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req model.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Username == "" || req.Password == "" {
		return c.Status(400).JSON(fiber.Map{"error": "username and password are required"})
	}

	resp, err := h.authSvc.Login(c.Context(), &req)
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(resp)
}

// ListAdmins returns all active admins with presence, for the customer
// side's agent picker. GET /api/v1/admins
func (h *AdminHandler) ListAdmins(c *fiber.Ctx) error {
	admins, err := h.presenceSvc.List(c.Context())
	if err != nil {
		return chatError(c, err)
	}
	if admins == nil {
		admins = []model.AdminPresence{}
	}
	return c.JSON(fiber.Map{"admins": admins})
}

// SetPresence sets the calling admin's online state.
// POST /api/v1/admins/presence
func (h *AdminHandler) SetPresence(c *fiber.Ctx) error {
	var req model.PresenceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	ident := middleware.Identity(c)
	admin, err := h.presenceSvc.SetOnline(c.Context(), ident.SubjectID, req.Online)
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(fiber.Map{"admin": admin})
}

// Queues returns the triage view: sessions awaiting a first reply and
// ones an admin has engaged. GET /api/v1/chat/sessions
func (h *AdminHandler) Queues(c *fiber.Ctx) error {
	// Serve from the console's in-memory view; refresh inline only when
	// the background loop has not completed a pass yet.
	if !h.console.Loaded() {
		if err := h.console.Refresh(c.Context()); err != nil {
			return chatError(c, err)
		}
	}
	waiting, active := h.console.Queues()
	if waiting == nil {
		waiting = []model.SessionSummary{}
	}
	if active == nil {
		active = []model.SessionSummary{}
	}
	return c.JSON(fiber.Map{"waiting": waiting, "active": active})
}
