package middleware

import (
	"strings"

	"supportchat-backend/internal/model"
	"supportchat-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Auth verifies the bearer token and stores the subject on the context.
// Every identity-bearing route goes through here.
func Auth(authSvc *service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(401).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		ident, err := authSvc.Verify(tokenString)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals("subject_id", ident.SubjectID)
		c.Locals("subject_kind", ident.SubjectKind)
		return c.Next()
	}
}

// RequireAdmin rejects customer tokens. Must run after Auth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if kind, _ := c.Locals("subject_kind").(string); kind != model.SenderAdmin {
			return c.Status(403).JSON(fiber.Map{"error": "admin access required"})
		}
		return c.Next()
	}
}

// Identity rebuilds the verified subject from the context locals.
func Identity(c *fiber.Ctx) *service.Identity {
	id, _ := c.Locals("subject_id").(string)
	kind, _ := c.Locals("subject_kind").(string)
	return &service.Identity{SubjectID: id, SubjectKind: kind}
}
