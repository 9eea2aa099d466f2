package auth

import (
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RequireAuthenticated passes any caller Authenticate accepted, user or staff.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.ErrUnauthorized
		}
		return c.Next()
	}
}

// RequireUser restricts a route to end-user principals.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return fiber.NewError(fiber.StatusForbidden, "end-user required")
		}
		return c.Next()
	}
}

// RequireStaffRole restricts a route to staff principals. With no arguments
// any staff role passes; otherwise the member's role must be listed.
func RequireStaffRole(roles ...domain.StaffRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Staff == nil {
			return fiber.NewError(fiber.StatusForbidden, "staff access required")
		}
		if len(roles) > 0 && !slices.Contains(roles, principal.Staff.Role) {
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
