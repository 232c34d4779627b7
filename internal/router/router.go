package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/storefront-session/internal/handler"
	"github.com/iliyamo/storefront-session/internal/middleware"
	"github.com/iliyamo/storefront-session/internal/model"
	"github.com/iliyamo/storefront-session/internal/service"
)

// New builds the Echo instance with the middleware every route shares.
// CORS allows credentials for the storefront origin only, so the browser
// sends the refresh cookie cross-origin.
func New(corsOrigin string, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     []string{corsOrigin},
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, echo.HeaderXRequestID},
			AllowCredentials: true,
		}),
		echomw.BodyLimit("1M"),
	)
	return e
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the session endpoints.  Register, login and
// refresh sit behind the rate limiter; logout needs only the cookie.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, guard *service.SessionGuard, limiter echo.MiddlewareFunc) {
	if limiter == nil {
		limiter = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)
	g.POST("/refresh", a.Refresh, limiter)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(guard),
		middleware.RequireRole(guard, model.RoleUser, model.RoleAdmin),
	)
}

// RegisterShopper registers the cart, favorites and sync endpoints.  All
// of them require the user role.
func RegisterShopper(e *echo.Echo, s *handler.ShopHandler, guard *service.SessionGuard) {
	user := []echo.MiddlewareFunc{
		middleware.JWTAuth(guard),
		middleware.RequireRole(guard, model.RoleUser),
	}
	e.POST("/v1/sync", s.Sync, user...)

	cart := e.Group("/v1/cart", user...)
	cart.GET("", s.GetCart)
	cart.POST("", s.AddToCart)
	cart.PUT("", s.UpdateCart)
	cart.DELETE("/:productId", s.RemoveFromCart)

	favs := e.Group("/v1/favorites", user...)
	favs.GET("", s.GetFavorites)
	favs.POST("", s.AddFavorite)
	favs.DELETE("/:productId", s.RemoveFavorite)
}

// RegisterAdmin registers admin-only endpoints.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, guard *service.SessionGuard) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(guard),
		middleware.RequireRole(guard, model.RoleAdmin),
	)
	g.POST("/accounts", a.CreateAdmin)
}
