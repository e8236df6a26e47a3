package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/LavaJover/lockin-market-service/internal/delivery/http/dto/request"
	"github.com/LavaJover/lockin-market-service/internal/delivery/http/dto/response"
	"github.com/LavaJover/lockin-market-service/internal/delivery/http/middleware"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
	orderdto "github.com/LavaJover/lockin-market-service/internal/usecase/dto/order"
)

type OrderHandler struct {
	uc usecase.OrderUsecase
}

func NewOrderHandler(uc usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

// Create opens an order for the listing the caller holds a lock on. A repeated
// call returns the existing pending order with 200.
func (h *OrderHandler) Create(c echo.Context) error {
	order, created, err := h.uc.CreateOrder(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, response.CreateOrderResponse{
		Created: created,
		Order:   orderdto.ToOrderOutput(order),
	})
}

func (h *OrderHandler) AttachPaymentSession(c echo.Context) error {
	var req request.AttachPaymentSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed body")
	}
	ctx := c.Request().Context()
	orderID := c.Param("id")

	current, err := h.uc.GetOrderByID(ctx, orderID, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	if current.BuyerID != middleware.UserID(c) {
		return respondError(c, domain.ErrForbidden)
	}
	order, err := h.uc.AttachPaymentSession(ctx, orderID, req.SessionRef, req.IdempotencyToken)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orderdto.ToOrderOutput(order))
}

func (h *OrderHandler) Get(c echo.Context) error {
	order, err := h.uc.GetOrderByID(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orderdto.ToOrderOutput(order))
}

func (h *OrderHandler) GetBySession(c echo.Context) error {
	order, err := h.uc.GetOrderBySession(c.Request().Context(), c.Param("ref"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orderdto.ToOrderOutput(order))
}

// List serves GET /v1/orders?as=buyer|seller&status=&limit=
func (h *OrderHandler) List(c echo.Context) error {
	input := &orderdto.ListOrdersInput{
		UserID: middleware.UserID(c),
		As:     c.QueryParam("as"),
		Status: c.QueryParam("status"),
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "limit must be an integer")
		}
		input.Limit = limit
	}

	orders, err := h.uc.GetOrders(c.Request().Context(), input)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]*orderdto.OrderOutput, len(orders))
	for i, o := range orders {
		out[i] = orderdto.ToOrderOutput(o)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) History(c echo.Context) error {
	history, err := h.uc.GetOrderHistory(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orderdto.ToTransitionOutputs(history))
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	order, err := h.uc.CancelOrder(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orderdto.ToOrderOutput(order))
}

func (h *OrderHandler) Refund(c echo.Context) error {
	order, err := h.uc.RefundOrder(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orderdto.ToOrderOutput(order))
}

func (h *OrderHandler) Expire(c echo.Context) error {
	order, err := h.uc.ExpireOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orderdto.ToOrderOutput(order))
}
