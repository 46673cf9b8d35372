package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/ticket-engine/pkg/util"
)

// RequirePermission rejects callers lacking the permission.
func RequirePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthenticated("authentication required")
		}
		if !HasPermission(principal, permission) {
			return apperrors.NewForbidden("missing permission " + permission)
		}
		return c.Next()
	}
}

// RequireAdmin rejects non-admin callers.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthenticated("authentication required")
		}
		if !IsAdmin(principal) {
			return apperrors.NewForbidden("admin role required")
		}
		return c.Next()
	}
}
