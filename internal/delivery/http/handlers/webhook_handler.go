package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/LavaJover/lockin-market-service/internal/delivery/http/dto/response"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/payment"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
)

const maxWebhookBody = 1 << 20

type SignatureVerifier interface {
	Verify(payload []byte, header string) error
}

type WebhookHandler struct {
	uc       usecase.WebhookUsecase
	verifier SignatureVerifier
}

func NewWebhookHandler(uc usecase.WebhookUsecase, verifier SignatureVerifier) *WebhookHandler {
	return &WebhookHandler{uc: uc, verifier: verifier}
}

// Payment receives provider notifications. Verification and parse failures
// get 400. Every ingest result gets 200; transient failures get 503 so the
// provider redelivers.
func (h *WebhookHandler) Payment(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "unreadable body")
	}

	if err := h.verifier.Verify(body, c.Request().Header.Get(payment.SignatureHeader)); err != nil {
		slog.Warn("webhook signature rejected", "error", err)
		return badRequest(c, "invalid signature")
	}

	event, err := payment.ParseEvent(body)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.uc.Ingest(c.Request().Context(), event)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return badRequest(c, err.Error())
		}
		slog.Error("webhook ingest failed", "event_id", event.ID, "type", event.Type, "error", err)
		return c.JSON(http.StatusServiceUnavailable, response.ErrorResponse{
			Success: false,
			Code:    "retry",
			Error:   "temporarily unable to process event",
		})
	}
	return c.JSON(http.StatusOK, response.WebhookResponse{Received: true, Result: string(result)})
}
