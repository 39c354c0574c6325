package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"galleryapi/internal/model"
)

// IdentityLocalKey is the Fiber locals key holding the caller's *model.Identity.
const IdentityLocalKey = "identity"

// TokenVerifier resolves a bearer token to an identity.
type TokenVerifier interface {
	Verify(token string) (*model.Identity, error)
}

func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// OptionalAuth attaches the identity when a valid bearer token is present.
// Missing or invalid tokens leave the request anonymous.
func OptionalAuth(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tok := bearerToken(c); tok != "" {
			if id, err := v.Verify(tok); err == nil {
				c.Locals(IdentityLocalKey, id)
			}
		}
		return c.Next()
	}
}

// RequireAuth rejects requests without a valid bearer token with 401.
func RequireAuth(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := bearerToken(c)
		if tok == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Access token required")
		}
		id, err := v.Verify(tok)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}
		c.Locals(IdentityLocalKey, id)
		return c.Next()
	}
}

// IdentityFrom returns the authenticated caller, or nil for anonymous requests.
func IdentityFrom(c *fiber.Ctx) *model.Identity {
	id, _ := c.Locals(IdentityLocalKey).(*model.Identity)
	return id
}
