package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger writes one structured line per request.  4xx responses log at warn
// and 5xx at error.  Headers and bodies are never logged, so tokens and
// passwords stay out of the log.
func Logger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			event := log.Info()
			if status >= 500 {
				event = log.Error()
			} else if status >= 400 {
				event = log.Warn()
			}

			event.
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("client_ip", c.RealIP()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Uint64("account_id", AccountID(c)).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("http request")
			return nil
		}
	}
}
