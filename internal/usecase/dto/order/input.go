package orderdto

const (
	AsBuyer  = "buyer"
	AsSeller = "seller"
)

type ListOrdersInput struct {
	UserID string
	// As is "buyer", "seller" or empty for both sides.
	As     string
	Status string
	Limit  int
}
