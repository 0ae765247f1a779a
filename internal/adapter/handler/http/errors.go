package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/usecase"
	pkgerrors "github.com/wekeepgrowing/stripe-notion-sync/pkg/errors"
)

// toHTTPError maps usecase errors onto HTTP statuses. Coded errors fall back
// to the shared code table.
func toHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domainErrors.ErrUnknownTenant):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domainErrors.ErrUnknownEntityType),
		errors.Is(err, domainErrors.ErrNotFetchable):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, usecase.ErrBackfillRunning):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, usecase.ErrInvalidSignature):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}
	return pkgerrors.ToHTTPError(err)
}
