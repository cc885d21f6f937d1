package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/pedidos-console/pkg/util"
)

const claimsKey = "auth_claims"

// RequireRoute enforces the guard on a console route. Roles, when given, are
// the route's role requirement.
func RequireRoute(guard *RouteGuard, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision := guard.CanEnter(c.UserContext(), Requirement{Path: c.Path(), Roles: roles})
		switch {
		case decision.Allowed:
			c.Locals(claimsKey, guard.auth.Claims(c.UserContext()))
			return c.Next()
		case decision.Reason == DenyUnauthenticated:
			return apperrors.NewDomainError(apperrors.CodeUnauthenticated, "authentication required",
				fiber.StatusUnauthorized, map[string]any{"redirect": decision.Redirect})
		default:
			return apperrors.NewForbidden("insufficient role")
		}
	}
}

// ClaimsFromContext retrieves the claims stored by RequireRoute.
func ClaimsFromContext(c *fiber.Ctx) (Claims, bool) {
	val := c.Locals(claimsKey)
	if val == nil {
		return Claims{}, false
	}
	claims, ok := val.(Claims)
	return claims, ok
}
