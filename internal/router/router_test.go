package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/storefront-session/internal/config"
	"github.com/iliyamo/storefront-session/internal/handler"
	"github.com/iliyamo/storefront-session/internal/memstore"
	"github.com/iliyamo/storefront-session/internal/service"
	"github.com/iliyamo/storefront-session/internal/utils"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type api struct {
	t     *testing.T
	e     *echo.Echo
	store *memstore.Store
	guard *service.SessionGuard
	clock *clock
}

func newAPI(t *testing.T) *api {
	t.Helper()
	cfg := config.Config{AccessTTLMin: 15, RefreshTTLDays: 7, CORSOrigin: "http://localhost:3000"}
	clk := &clock{t: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	issuer, err := utils.NewTokenIssuer("access-secret", "refresh-secret", cfg.AccessTTL(), cfg.RefreshTTL(), utils.WithClock(clk.Now))
	require.NoError(t, err)
	hasher, err := utils.NewPasswordHasher("pepper", bcrypt.MinCost)
	require.NoError(t, err)

	store := memstore.New()
	store.AddProducts(1, 2, 3, 4, 5)
	log := zerolog.Nop()
	guard := service.NewSessionGuard(service.GuardDeps{
		Accounts: store, Tokens: store, Issuer: issuer, Hasher: hasher, Merger: store, Log: log,
	})

	e := New(cfg.CORSOrigin, log)
	RegisterRoutes(e, nil)
	RegisterAuth(e, handler.NewAuthHandler(cfg, guard, log), guard, nil)
	RegisterShopper(e, handler.NewShopHandler(guard, store.Carts(), store.Favorites(), log), guard)
	RegisterAdmin(e, handler.NewAdminHandler(guard, log), guard)
	return &api{t: t, e: e, store: store, guard: guard, clock: clk}
}

type call struct {
	method, path, body string
	token              string
	cookie             *http.Cookie
}

func (a *api) do(c call) *httptest.ResponseRecorder {
	a.t.Helper()
	var req *http.Request
	if c.body != "" {
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(c.method, c.path, nil)
	}
	if c.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

type session struct {
	Account struct {
		ID       uint64 `json:"id"`
		Identity string `json:"identity"`
		Role     string `json:"role"`
	} `json:"account"`
	AccessToken    string    `json:"access_token"`
	ExpiresAt      time.Time `json:"expires_at"`
	Reconciliation struct {
		Applied   bool   `json:"applied"`
		CartLines int    `json:"cart_lines"`
		Favorites int    `json:"favorites"`
		Error     string `json:"error"`
	} `json:"reconciliation"`
	cookie *http.Cookie
}

func refreshCookieOf(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == handler.RefreshCookie {
			return ck
		}
	}
	return nil
}

func (a *api) session(path, body string, want int) session {
	a.t.Helper()
	rec := a.do(call{method: http.MethodPost, path: path, body: body})
	require.Equal(a.t, want, rec.Code, rec.Body.String())
	var s session
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &s))
	s.cookie = refreshCookieOf(rec)
	require.NotNil(a.t, s.cookie)
	return s
}

const shopperBody = `{"identity":"a@b.com","password":"secret1"}`

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	rec := a.do(call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRegister_SetsRefreshCookie(t *testing.T) {
	a := newAPI(t)
	s := a.session("/v1/auth/register", shopperBody, http.StatusCreated)

	assert.Equal(t, "a@b.com", s.Account.Identity)
	assert.Equal(t, "user", s.Account.Role)
	assert.NotEmpty(t, s.AccessToken)
	assert.True(t, s.Reconciliation.Applied)
	assert.True(t, a.clock.Now().Add(15*time.Minute).Equal(s.ExpiresAt))

	ck := s.cookie
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
	assert.Equal(t, "/v1/auth", ck.Path)
	assert.Equal(t, 7*24*60*60, ck.MaxAge)
	assert.NotContains(t, s.AccessToken, ck.Value)

	rec := a.do(call{method: http.MethodPost, path: "/v1/auth/register", body: shopperBody})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_ValidationErrors(t *testing.T) {
	a := newAPI(t)

	rec := a.do(call{method: http.MethodPost, path: "/v1/auth/register", body: `{"identity":"","password":"secret1"}`})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"validation_failed","fields":{"identity":"cannot be blank"}}`, rec.Body.String())

	rec = a.do(call{method: http.MethodPost, path: "/v1/auth/register",
		body: `{"identity":"x","password":"secret1","anonymous":{"cart":[{"product_id":1,"quantity":0}]}}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, refreshCookieOf(rec))

	rec = a.do(call{method: http.MethodPost, path: "/v1/auth/register", body: `{not json`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_WrongPasswordIssuesNoCookie(t *testing.T) {
	a := newAPI(t)
	a.session("/v1/auth/register", shopperBody, http.StatusCreated)

	for _, body := range []string{
		`{"identity":"a@b.com","password":"nope-nope"}`,
		`{"identity":"nobody","password":"secret1"}`,
	} {
		rec := a.do(call{method: http.MethodPost, path: "/v1/auth/login", body: body})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
		assert.Nil(t, refreshCookieOf(rec))
	}
}

func TestLogin_ReconcilesAnonymousState(t *testing.T) {
	a := newAPI(t)
	reg := a.session("/v1/auth/register", shopperBody, http.StatusCreated)
	rec := a.do(call{method: http.MethodPost, path: "/v1/cart", token: reg.AccessToken, body: `{"product_id":1,"quantity":2}`})
	require.Equal(t, http.StatusOK, rec.Code)

	s := a.session("/v1/auth/login",
		`{"identity":"a@b.com","password":"secret1","anonymous":{"cart":[{"product_id":1,"quantity":3},{"product_id":2,"quantity":1}],"favorites":[4,4]}}`,
		http.StatusOK)
	assert.True(t, s.Reconciliation.Applied)
	assert.Equal(t, 2, s.Reconciliation.CartLines)
	assert.Equal(t, 1, s.Reconciliation.Favorites)

	rec = a.do(call{method: http.MethodGet, path: "/v1/cart", token: s.AccessToken})
	assert.JSONEq(t, `{"cart":[{"product_id":1,"quantity":5},{"product_id":2,"quantity":1}]}`, rec.Body.String())
	rec = a.do(call{method: http.MethodGet, path: "/v1/favorites", token: s.AccessToken})
	assert.JSONEq(t, `{"favorites":[4]}`, rec.Body.String())
}

func TestLogin_UnknownProductDoesNotBlockSession(t *testing.T) {
	a := newAPI(t)
	a.session("/v1/auth/register", shopperBody, http.StatusCreated)

	s := a.session("/v1/auth/login",
		`{"identity":"a@b.com","password":"secret1","anonymous":{"cart":[{"product_id":99,"quantity":1}],"favorites":[2]}}`,
		http.StatusOK)
	assert.False(t, s.Reconciliation.Applied)
	assert.Equal(t, "unknown_product", s.Reconciliation.Error)

	rec := a.do(call{method: http.MethodGet, path: "/v1/favorites", token: s.AccessToken})
	assert.JSONEq(t, `{"favorites":[]}`, rec.Body.String(), "a failed merge applies nothing")

	rec = a.do(call{method: http.MethodPost, path: "/v1/sync", token: s.AccessToken, body: `{"favorites":[2]}`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"applied":true,"cart_lines":0,"favorites":1}`, rec.Body.String())
}

func TestLogin_InvalidAnonymousStateDoesNotBlockSession(t *testing.T) {
	a := newAPI(t)
	a.session("/v1/auth/register", shopperBody, http.StatusCreated)

	s := a.session("/v1/auth/login",
		`{"identity":"a@b.com","password":"secret1","anonymous":{"cart":[{"product_id":1,"quantity":0}]}}`,
		http.StatusOK)
	assert.False(t, s.Reconciliation.Applied)
	assert.Equal(t, "validation_failed", s.Reconciliation.Error)

	rec := a.do(call{method: http.MethodGet, path: "/v1/me", token: s.AccessToken})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCart_QuantityIsBounded(t *testing.T) {
	a := newAPI(t)
	tok := a.session("/v1/auth/register", shopperBody, http.StatusCreated).AccessToken

	rec := a.do(call{method: http.MethodPost, path: "/v1/cart", token: tok, body: `{"product_id":1,"quantity":10000}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(call{method: http.MethodPut, path: "/v1/cart", token: tok, body: `{"product_id":1,"quantity":10000}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	a.do(call{method: http.MethodPost, path: "/v1/cart", token: tok, body: `{"product_id":1,"quantity":9999}`})
	rec = a.do(call{method: http.MethodPost, path: "/v1/cart", token: tok, body: `{"product_id":1,"quantity":5}`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cart":[{"product_id":1,"quantity":9999}]}`, rec.Body.String())
}

func TestAddFavorite_RequiresProduct(t *testing.T) {
	a := newAPI(t)
	tok := a.session("/v1/auth/register", shopperBody, http.StatusCreated).AccessToken

	rec := a.do(call{method: http.MethodPost, path: "/v1/favorites", token: tok, body: `{"product_id":0}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"validation_failed","fields":{"product_id":"cannot be blank"}}`, rec.Body.String())
}

func TestRefreshFlow(t *testing.T) {
	a := newAPI(t)
	s := a.session("/v1/auth/register", shopperBody, http.StatusCreated)

	rec := a.do(call{method: http.MethodPost, path: "/v1/auth/refresh"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"no_refresh_token"}`, rec.Body.String())

	a.clock.Advance(16 * time.Minute)
	rec = a.do(call{method: http.MethodGet, path: "/v1/me", token: s.AccessToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(call{method: http.MethodPost, path: "/v1/auth/refresh", cookie: s.cookie})
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Nil(t, refreshCookieOf(rec), "refresh does not rotate the cookie")

	rec = a.do(call{method: http.MethodGet, path: "/v1/me", token: out.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"identity":"a@b.com"`)

	rec = a.do(call{method: http.MethodPost, path: "/v1/auth/refresh",
		cookie: &http.Cookie{Name: handler.RefreshCookie, Value: "forged"}})
	assert.JSONEq(t, `{"error":"invalid_refresh_token"}`, rec.Body.String())
}

func TestRefresh_ExpiredSessionClearsCookie(t *testing.T) {
	a := newAPI(t)
	s := a.session("/v1/auth/register", shopperBody, http.StatusCreated)

	a.clock.Advance(8 * 24 * time.Hour)
	rec := a.do(call{method: http.MethodPost, path: "/v1/auth/refresh", cookie: s.cookie})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"session_expired"}`, rec.Body.String())
	ck := refreshCookieOf(rec)
	require.NotNil(t, ck)
	assert.Less(t, ck.MaxAge, 0)

	rec = a.do(call{method: http.MethodPost, path: "/v1/auth/refresh", cookie: s.cookie})
	assert.JSONEq(t, `{"error":"invalid_refresh_token"}`, rec.Body.String())
}

func TestLogout(t *testing.T) {
	a := newAPI(t)
	s := a.session("/v1/auth/register", shopperBody, http.StatusCreated)

	rec := a.do(call{method: http.MethodPost, path: "/v1/auth/logout", cookie: s.cookie})
	require.Equal(t, http.StatusOK, rec.Code)
	ck := refreshCookieOf(rec)
	require.NotNil(t, ck)
	assert.Less(t, ck.MaxAge, 0)

	rec = a.do(call{method: http.MethodPost, path: "/v1/auth/refresh", cookie: s.cookie})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(call{method: http.MethodPost, path: "/v1/auth/logout"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoles(t *testing.T) {
	a := newAPI(t)
	user := a.session("/v1/auth/register", shopperBody, http.StatusCreated)
	_, err := a.guard.CreateAdmin(context.Background(), service.Credentials{Identity: "root", Password: "admin-pass"})
	require.NoError(t, err)
	admin := a.session("/v1/auth/login", `{"identity":"root","password":"admin-pass"}`, http.StatusOK)

	assert.Equal(t, http.StatusOK, a.do(call{method: http.MethodGet, path: "/v1/me", token: user.AccessToken}).Code)
	assert.Equal(t, http.StatusOK, a.do(call{method: http.MethodGet, path: "/v1/me", token: admin.AccessToken}).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(call{method: http.MethodGet, path: "/v1/me"}).Code)

	assert.Equal(t, http.StatusForbidden, a.do(call{method: http.MethodGet, path: "/v1/cart", token: admin.AccessToken}).Code)

	body := `{"identity":"ops","password":"ops-pass"}`
	assert.Equal(t, http.StatusForbidden,
		a.do(call{method: http.MethodPost, path: "/v1/admin/accounts", token: user.AccessToken, body: body}).Code)
	rec := a.do(call{method: http.MethodPost, path: "/v1/admin/accounts", token: admin.AccessToken, body: body})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"account":{"id":3,"identity":"ops","role":"admin"}}`, rec.Body.String())
}

func TestCartAndFavorites(t *testing.T) {
	a := newAPI(t)
	s := a.session("/v1/auth/register", shopperBody, http.StatusCreated)
	tok := s.AccessToken

	a.do(call{method: http.MethodPost, path: "/v1/cart", token: tok, body: `{"product_id":3,"quantity":1}`})
	rec := a.do(call{method: http.MethodPost, path: "/v1/cart", token: tok, body: `{"product_id":3,"quantity":2}`})
	assert.JSONEq(t, `{"cart":[{"product_id":3,"quantity":3}]}`, rec.Body.String())

	rec = a.do(call{method: http.MethodPut, path: "/v1/cart", token: tok, body: `{"product_id":3,"quantity":1}`})
	assert.JSONEq(t, `{"cart":[{"product_id":3,"quantity":1}]}`, rec.Body.String())

	rec = a.do(call{method: http.MethodPut, path: "/v1/cart", token: tok, body: `{"product_id":4,"quantity":1}`})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(call{method: http.MethodPost, path: "/v1/cart", token: tok, body: `{"product_id":3,"quantity":-1}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(call{method: http.MethodPost, path: "/v1/cart", token: tok, body: `{"product_id":77,"quantity":1}`})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(call{method: http.MethodDelete, path: "/v1/cart/3", token: tok})
	assert.JSONEq(t, `{"cart":[]}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, a.do(call{method: http.MethodDelete, path: "/v1/cart/3", token: tok}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(call{method: http.MethodDelete, path: "/v1/cart/abc", token: tok}).Code)

	rec = a.do(call{method: http.MethodPost, path: "/v1/favorites", token: tok, body: `{"product_id":2}`})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"favorites":[2]}`, rec.Body.String())
	rec = a.do(call{method: http.MethodPost, path: "/v1/favorites", token: tok, body: `{"product_id":2}`})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = a.do(call{method: http.MethodDelete, path: "/v1/favorites/2", token: tok})
	assert.JSONEq(t, `{"favorites":[]}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, a.do(call{method: http.MethodDelete, path: "/v1/favorites/2", token: tok}).Code)
}

func TestCORSAllowsCredentialsForStorefront(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/auth/login", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
}
