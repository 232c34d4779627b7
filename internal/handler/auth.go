package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/storefront-session/internal/config"
	"github.com/iliyamo/storefront-session/internal/middleware"
	"github.com/iliyamo/storefront-session/internal/model"
	"github.com/iliyamo/storefront-session/internal/service"
)

// RefreshCookie is the name of the HTTP-only cookie carrying the refresh
// token.  It is scoped to the auth routes; no other endpoint ever sees it.
const (
	RefreshCookie     = "refresh_token"
	refreshCookiePath = "/v1/auth"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Guard *service.SessionGuard
	Log   zerolog.Logger
}

func NewAuthHandler(cfg config.Config, g *service.SessionGuard, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Guard: g, Log: log}
}

// ----- DTOs -----

type credentialsReq struct {
	Identity  string               `json:"identity"`
	Password  string               `json:"password"`
	Anonymous model.AnonymousState `json:"anonymous"`
}

func (r credentialsReq) credentials() service.Credentials {
	return service.Credentials{Identity: r.Identity, Password: r.Password}
}

type accountPart struct {
	ID       uint64 `json:"id"`
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

func accountOf(a model.Account) accountPart {
	return accountPart{ID: a.ID, Identity: a.Identity, Role: a.Role}
}

type reconciliationPart struct {
	Applied   bool   `json:"applied"`
	CartLines int    `json:"cart_lines"`
	Favorites int    `json:"favorites"`
	Error     string `json:"error,omitempty"`
}

type sessionResp struct {
	Account        accountPart        `json:"account"`
	AccessToken    string             `json:"access_token"`
	ExpiresAt      time.Time          `json:"expires_at"`
	Reconciliation reconciliationPart `json:"reconciliation"`
}

type refreshResp struct {
	Account     accountPart `json:"account"`
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Register creates a user account and starts its session.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Guard.Register(ctx, req.credentials(), req.Anonymous)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return h.startSession(c, http.StatusCreated, res)
}

// Login verifies credentials and starts a session.  The refresh token only
// ever travels in the cookie; the body carries the access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Guard.Login(ctx, req.credentials(), req.Anonymous)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return h.startSession(c, http.StatusOK, res)
}

func (h *AuthHandler) startSession(c echo.Context, status int, res service.LoginResult) error {
	h.setRefreshCookie(c, res.Refresh.Raw)
	rec := reconciliationPart{
		Applied:   res.Reconciliation.Applied,
		CartLines: res.Reconciliation.Report.CartLines,
		Favorites: res.Reconciliation.Report.Favorites,
	}
	if res.Reconciliation.Err != nil {
		rec.Error = errorClass(res.Reconciliation.Err)
	}
	return c.JSON(status, sessionResp{
		Account:        accountOf(res.Account),
		AccessToken:    res.Access.Token,
		ExpiresAt:      res.Access.Exp,
		Reconciliation: rec,
	})
}

// Refresh exchanges the refresh cookie for a new access token.  The cookie
// is left in place unless the session expired, in which case it is cleared.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	access, acct, err := h.Guard.Refresh(ctx, refreshCookie(c))
	if err != nil {
		if errors.Is(err, service.ErrExpiredSession) {
			h.clearRefreshCookie(c)
		}
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, refreshResp{
		Account:     accountOf(acct),
		AccessToken: access.Token,
		ExpiresAt:   access.Exp,
	})
}

// Logout invalidates the refresh token and clears the cookie.  It needs no
// access token and succeeds for an unknown or missing cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	h.clearRefreshCookie(c)
	if err := h.Guard.Logout(ctx, refreshCookie(c)); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me echoes the verified access claims.
func (h *AuthHandler) Me(c echo.Context) error {
	cl := middleware.Claims(c)
	if cl == nil {
		return respondError(c, h.Log, service.ErrUnauthorized)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":         cl.AccountID,
		"identity":   cl.Identity,
		"role":       cl.Role,
		"expires_at": cl.ExpiresAt.Time,
	})
}

func refreshCookie(c echo.Context) string {
	ck, err := c.Cookie(RefreshCookie)
	if err != nil {
		return ""
	}
	return ck.Value
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, raw string) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookie,
		Value:    raw,
		Path:     refreshCookiePath,
		MaxAge:   int(h.Cfg.RefreshTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
