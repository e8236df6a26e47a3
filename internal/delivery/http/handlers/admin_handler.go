package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/LavaJover/lockin-market-service/internal/delivery/http/dto/response"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
)

type AdminHandler struct {
	sweeper usecase.SweeperUsecase
	ledger  usecase.LedgerUsecase
}

func NewAdminHandler(sweeper usecase.SweeperUsecase, ledger usecase.LedgerUsecase) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, ledger: ledger}
}

func (h *AdminHandler) Sweep(c echo.Context) error {
	report, err := h.sweeper.SweepExpired(c.Request().Context(), usecase.TriggerManual)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// PurgeLedger drops ledger entries older than ?older_than= (a Go duration),
// or the configured retention when omitted.
func (h *AdminHandler) PurgeLedger(c echo.Context) error {
	var age time.Duration
	if raw := c.QueryParam("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return badRequest(c, "older_than must be a positive duration")
		}
		age = d
	}
	deleted, err := h.ledger.PurgeOlderThan(c.Request().Context(), age)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, response.PurgeResponse{Deleted: deleted})
}
