package listingdto

type CreateListingInput struct {
	SellerID   string
	Title      string
	PriceCents int64
	Currency   string
}

type ListListingsInput struct {
	SellerID      string
	MinPriceCents int64
	MaxPriceCents int64
	Limit         int
}
