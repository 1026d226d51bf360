package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"sheetlens/internal/auth"
)

const (
	// LegacyTokenHeader carries a bare token for clients that predate bearer auth.
	LegacyTokenHeader = "X-Auth-Token"
	// IdentityLocalKey is the key used to store the verified auth.Identity in Fiber's context locals.
	IdentityLocalKey = "identity"
)

// TokenVerifier validates a raw token.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Auth rejects requests without a valid token with a 401 fiber.Error and
// stores the verified identity under IdentityLocalKey.
//
// The token is read from "Authorization: Bearer <token>", falling back to the
// X-Auth-Token header.
func Auth(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := v.Verify(tokenFrom(c))
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) {
				return fiber.NewError(fiber.StatusUnauthorized, "no token, authorization denied")
			}
			return fiber.NewError(fiber.StatusUnauthorized, "token is not valid")
		}
		c.Locals(IdentityLocalKey, id)
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c *fiber.Ctx) (auth.Identity, bool) {
	id, ok := c.Locals(IdentityLocalKey).(auth.Identity)
	return id, ok && id.UserID != ""
}

func tokenFrom(c *fiber.Ctx) string {
	if h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization)); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(c.Get(LegacyTokenHeader))
}
