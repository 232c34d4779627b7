package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/storefront-session/internal/repository"
	"github.com/iliyamo/storefront-session/internal/service"
)

// respondError is the single place service and repository errors become
// HTTP responses.  Anything unrecognised is logged and answered with a
// generic 500 so internals never reach the client.
func respondError(c echo.Context, log zerolog.Logger, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "fields": verr.Fields})
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed"})
	case errors.Is(err, service.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrNoRefreshToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no_refresh_token"})
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_refresh_token"})
	case errors.Is(err, service.ErrExpiredSession):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session_expired"})
	case errors.Is(err, service.ErrConflict), errors.Is(err, repository.ErrIdentityExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "identity_taken"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, repository.ErrUnknownProduct):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown_product"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	}
	log.Error().Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
}

// errorClass names a reconciliation failure without exposing its details.
func errorClass(err error) string {
	switch {
	case errors.Is(err, service.ErrValidation):
		return "validation_failed"
	case errors.Is(err, repository.ErrUnknownProduct):
		return "unknown_product"
	}
	return "merge_failed"
}

func invalidBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
}
