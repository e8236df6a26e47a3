package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/payment"
)

// SignatureHeader carries "t=<unix>,v1=<hex>" over the request body, the same
// scheme the payment webhook ingress verifies.
const SignatureHeader = "Market-Signature"

// CallbackPublisher delivers lifecycle events as signed HTTP callbacks.
type CallbackPublisher struct {
	url    string
	secret string
	client *http.Client
	clock  clock.Clock
}

func NewCallbackPublisher(url, secret string, timeout time.Duration, clk clock.Clock) *CallbackPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CallbackPublisher{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
		clock:  clk,
	}
}

func (p *CallbackPublisher) Publish(ctx context.Context, event domain.MarketEvent) error {
	now := p.clock.Now()
	body, err := json.Marshal(CallbackPayload{Type: event.Type, SentAt: now, Data: event})
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.secret != "" {
		req.Header.Set(SignatureHeader, payment.Sign(p.secret, body, now))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *CallbackPublisher) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
