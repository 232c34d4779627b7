package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-session/internal/service"
)

// JWTAuth returns an Echo middleware that validates the Bearer access token
// through the session guard and stores the verified claims in the context
// under ClaimsKey.  A missing, malformed, forged or expired token gets the
// same 401 body, so clients cannot tell which check failed.
func JWTAuth(guard *service.SessionGuard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := guard.Authenticate(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			c.Set(ClaimsKey, claims)
			return next(c)
		}
	}
}
