package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jsgaviriam/checkout/internal/domain"
)

var (
	errInvalidPage  = errors.New("invalid page")
	errInvalidLimit = errors.New("invalid limit")
)

// ErrorResponse — единый формат ошибки API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError переводит доменные sentinel-ошибки в HTTP-статусы.
// Всё неопознанное сворачивается в 500 без деталей наружу.
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case domain.IsNotFound(err):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrOutOfStock):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrProductIDRequired),
		errors.Is(err, domain.ErrCurrencyRequired),
		errors.Is(err, domain.ErrReferenceRequired),
		errors.Is(err, domain.ErrAmountInvalid),
		errors.Is(err, domain.ErrQtyInvalid),
		errors.Is(err, domain.ErrStatusInvalid):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidSignature):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid signature"})
	case errors.Is(err, domain.ErrTransactionExists):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
