package request

type CreateListingRequest struct {
	Title      string `json:"title"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
}

type UpdatePriceRequest struct {
	PriceCents int64 `json:"price_cents"`
}
