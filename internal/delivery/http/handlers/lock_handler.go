package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/LavaJover/lockin-market-service/internal/delivery/http/dto/response"
	"github.com/LavaJover/lockin-market-service/internal/delivery/http/middleware"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
)

type LockHandler struct {
	uc usecase.LockUsecase
}

func NewLockHandler(uc usecase.LockUsecase) *LockHandler {
	return &LockHandler{uc: uc}
}

func (h *LockHandler) Acquire(c echo.Context) error {
	listingID := c.Param("id")
	expiresAt, err := h.uc.Acquire(c.Request().Context(), listingID, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, response.LockResponse{ListingID: listingID, ExpiresAt: expiresAt})
}

func (h *LockHandler) Release(c echo.Context) error {
	if err := h.uc.Release(c.Request().Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
