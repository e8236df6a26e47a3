package notifier

import (
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
)

// CallbackPayload is the body POSTed to the configured callback URL.
type CallbackPayload struct {
	Type   string             `json:"type"`
	SentAt time.Time          `json:"sent_at"`
	Data   domain.MarketEvent `json:"data"`
}
