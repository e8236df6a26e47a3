package request

type AttachPaymentSessionRequest struct {
	SessionRef       string `json:"session_ref"`
	IdempotencyToken string `json:"idempotency_token"`
}
