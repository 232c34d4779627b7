package middleware

// identity.go holds the context accessors shared by middleware and
// handlers.  JWTAuth stores *utils.Claims under ClaimsKey; everything else
// reads it back through these helpers.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-session/internal/utils"
)

// ClaimsKey is the echo.Context key holding the verified access claims.
const ClaimsKey = "claims"

// Claims returns the verified claims, or nil on unauthenticated routes.
func Claims(c echo.Context) *utils.Claims {
	cl, _ := c.Get(ClaimsKey).(*utils.Claims)
	return cl
}

// AccountID returns the authenticated account id, or 0 when there is none.
func AccountID(c echo.Context) uint64 {
	if cl := Claims(c); cl != nil {
		return cl.AccountID
	}
	return 0
}
