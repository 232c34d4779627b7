package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/storefront-session/internal/service"
)

// AdminHandler serves admin-only account management.
type AdminHandler struct {
	Guard *service.SessionGuard
	Log   zerolog.Logger
}

func NewAdminHandler(g *service.SessionGuard, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{Guard: g, Log: log}
}

// CreateAdmin registers another admin account.  The new admin is not signed
// in; it logs in like any other account.
func (h *AdminHandler) CreateAdmin(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	acct, err := h.Guard.CreateAdmin(ctx, req.credentials())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"account": accountOf(acct)})
}
