package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a 500 and logs it.
func Recovery(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("error", r).
						Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
						Msg("panic recovered")
					err = c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_server_error"})
				}
			}()
			return next(c)
		}
	}
}
