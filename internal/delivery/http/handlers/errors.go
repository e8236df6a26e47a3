package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/LavaJover/lockin-market-service/internal/delivery/http/dto/response"
	"github.com/LavaJover/lockin-market-service/internal/domain"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrGone, http.StatusGone, "gone"},
	{domain.ErrAlreadyLocked, http.StatusConflict, "already_locked"},
	{domain.ErrConflict, http.StatusConflict, "sold"},
	{domain.ErrListingNotLocked, http.StatusConflict, "listing_not_locked"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrStaleVersion, http.StatusConflict, "stale_version"},
	{domain.ErrDuplicateKey, http.StatusConflict, "duplicate"},
	{domain.ErrSelfLockForbidden, http.StatusForbidden, "self_lock_forbidden"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

func StatusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func respondError(c echo.Context, err error) error {
	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
		msg = "internal error"
	}
	return c.JSON(status, response.ErrorResponse{Success: false, Code: code, Error: msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, response.ErrorResponse{
		Success: false,
		Code:    "invalid_input",
		Error:   msg,
	})
}
