package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
)

type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a provider event envelope.
func ParseEvent(payload []byte) (domain.PaymentEvent, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.ID == "" || env.Type == "" {
		return domain.PaymentEvent{}, fmt.Errorf("%w: id and type are required", ErrMalformedEvent)
	}

	event := domain.PaymentEvent{
		ID:       env.ID,
		Type:     env.Type,
		ObjectID: env.Data.Object.ID,
		Metadata: env.Data.Object.Metadata,
	}
	if env.Created > 0 {
		event.Created = time.Unix(env.Created, 0).UTC()
	}
	if md := env.Data.Object.Metadata; md != nil {
		event.OrderID = md["order_id"]
		event.ListingID = md["listing_id"]
	}
	return event, nil
}
