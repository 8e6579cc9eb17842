package handler

import (
	"errors"
	"net/http"

	"marketplace-escrow/internal/apperr"

	"github.com/labstack/echo/v4"
)

// httpError maps the core's error kinds to HTTP statuses so UI and
// tooling can branch on them. Unrecognized errors fall through to the
// framework's 500 handling.
func httpError(err error) error {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrGatewayFailure):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return err
	}
}
