package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/delivery/http/dto/request"
	"github.com/LavaJover/lockin-market-service/internal/delivery/http/middleware"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
	listingdto "github.com/LavaJover/lockin-market-service/internal/usecase/dto/listing"
)

type ListingHandler struct {
	uc    usecase.ListingUsecase
	clock clock.Clock
}

func NewListingHandler(uc usecase.ListingUsecase, clk clock.Clock) *ListingHandler {
	return &ListingHandler{uc: uc, clock: clk}
}

func (h *ListingHandler) Create(c echo.Context) error {
	var req request.CreateListingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed body")
	}
	listing, err := h.uc.CreateListing(c.Request().Context(), &listingdto.CreateListingInput{
		SellerID:   middleware.UserID(c),
		Title:      req.Title,
		PriceCents: req.PriceCents,
		Currency:   req.Currency,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, listingdto.ToListingOutput(listing, h.clock.Now()))
}

func (h *ListingHandler) Get(c echo.Context) error {
	out, err := h.uc.GetListing(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// List serves GET /v1/listings?seller_id=&min_price=&max_price=&limit=
func (h *ListingHandler) List(c echo.Context) error {
	input := &listingdto.ListListingsInput{SellerID: c.QueryParam("seller_id")}
	var err error
	if input.MinPriceCents, err = int64Query(c, "min_price"); err != nil {
		return badRequest(c, "min_price must be an integer")
	}
	if input.MaxPriceCents, err = int64Query(c, "max_price"); err != nil {
		return badRequest(c, "max_price must be an integer")
	}
	limit, err := int64Query(c, "limit")
	if err != nil {
		return badRequest(c, "limit must be an integer")
	}
	input.Limit = int(limit)

	out, err := h.uc.ListVisible(c.Request().Context(), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ListingHandler) UpdatePrice(c echo.Context) error {
	var req request.UpdatePriceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed body")
	}
	listing, err := h.uc.UpdatePrice(c.Request().Context(), c.Param("id"), middleware.UserID(c), req.PriceCents)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, listingdto.ToListingOutput(listing, h.clock.Now()))
}

func (h *ListingHandler) Delist(c echo.Context) error {
	listing, err := h.uc.Delist(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, listingdto.ToListingOutput(listing, h.clock.Now()))
}

func int64Query(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
