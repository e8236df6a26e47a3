package response

import "time"

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

type LockResponse struct {
	ListingID string    `json:"listing_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CreateOrderResponse struct {
	Created bool        `json:"created"`
	Order   interface{} `json:"order"`
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	Result   string `json:"result"`
}

type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}
