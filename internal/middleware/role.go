package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-authority/internal/model"
	"github.com/iliyamo/account-authority/internal/obs"
)

// RequireRole is the authorization gate for a single role.
func RequireRole(role model.RoleName) echo.MiddlewareFunc {
	return RequireAnyRole(role)
}

// RequireAnyRole lets the request through only when the claims stored by
// JWTAuth carry one of roles. Missing claims and a role outside the set
// are both 403, and next is not called.
func RequireAnyRole(roles ...model.RoleName) echo.MiddlewareFunc {
	allowed := make(map[model.RoleName]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok || !allowed[claims.Role] {
				obs.GuardRejections.WithLabelValues("authorization").Inc()
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
