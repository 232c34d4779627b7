package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-session/internal/service"
	"github.com/iliyamo/storefront-session/internal/utils"
)

// RequireRole lets the request through only when the authenticated claims
// carry exactly one of roles.  There is no hierarchy: a route open to both
// users and admins lists both.  It must run after JWTAuth; without claims
// in the context the request is treated as unauthenticated.
func RequireRole(guard *service.SessionGuard, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := authorizeAny(guard, Claims(c), roles)
			switch {
			case errors.Is(err, service.ErrForbidden):
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			case err != nil:
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			return next(c)
		}
	}
}

func authorizeAny(guard *service.SessionGuard, claims *utils.Claims, roles []string) error {
	err := service.ErrForbidden
	for _, role := range roles {
		if err = guard.Authorize(claims, role); err == nil || errors.Is(err, service.ErrUnauthorized) {
			return err
		}
	}
	return err
}
