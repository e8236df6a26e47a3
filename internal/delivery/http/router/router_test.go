package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/delivery/http/dto/response"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/memory"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/payment"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
	listingdto "github.com/LavaJover/lockin-market-service/internal/usecase/dto/listing"
	orderdto "github.com/LavaJover/lockin-market-service/internal/usecase/dto/order"
)

const (
	jwtSecret     = "test-secret"
	webhookSecret = "whsec_test"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type nopPublisher struct{}

func (nopPublisher) Publish(_ context.Context, _ domain.MarketEvent) error { return nil }

type server struct {
	e     *echo.Echo
	clock *clock.Manual
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewManual(t0)
	reg := prometheus.NewRegistry()
	m := metrics.NewMarketMetrics(reg)
	events := usecase.NewEventNotifier(nopPublisher{}, m)

	ledger := usecase.NewDefaultLedgerUsecase(store.Events(), clk, usecase.DefaultLedgerRetention, usecase.DefaultPurgeBatchSize, m)
	orders := usecase.NewDefaultOrderUsecase(store, store.Orders(), store.Listings(), clk, events, m)
	e := New(Deps{
		Listings:  usecase.NewDefaultListingUsecase(store, store.Listings(), store.Orders(), clk, events, m),
		Locks:     usecase.NewDefaultLockUsecase(store, store.Listings(), store.Orders(), clk, usecase.DefaultLockDuration, events, m),
		Orders:    orders,
		Webhooks:  usecase.NewDefaultWebhookUsecase(store, ledger, orders, store.Orders(), m),
		Sweeper:   usecase.NewDefaultSweeperUsecase(store, store.Listings(), store.Orders(), clk, 0, nil, 0, events, m),
		Ledger:    ledger,
		Verifier:  payment.NewSignatureVerifier(webhookSecret, 5*time.Minute, clk),
		Clock:     clk,
		JWTSecret: jwtSecret,
		Gatherer:  reg,
	})
	return &server{e: e, clock: clk}
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix()}
	if role != "" {
		claims["role"] = role
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (s *server) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *server) webhook(t *testing.T, payload []byte, signedAt time.Time) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(payload))
	req.Header.Set(payment.SignatureHeader, payment.Sign(webhookSecret, payload, signedAt))
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func (s *server) createListing(t *testing.T, seller string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/listings", token(t, seller, ""), map[string]interface{}{
		"title":       "Film camera",
		"price_cents": 12500,
	})
	expectStatus(t, rec, http.StatusCreated)
	var out listingdto.ListingOutput
	decode(t, rec, &out)
	return out.ID
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "ok" {
		t.Errorf("unexpected health body %q", rec.Body.String())
	}

	expectStatus(t, s.do(t, http.MethodGet, "/metrics", "", nil), http.StatusOK)
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)

	expectStatus(t, s.do(t, http.MethodPost, "/v1/listings", "", nil), http.StatusUnauthorized)
	expectStatus(t, s.do(t, http.MethodPost, "/v1/listings", "not-a-jwt", nil), http.StatusUnauthorized)

	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("other"))
	expectStatus(t, s.do(t, http.MethodPost, "/v1/listings", forged, nil), http.StatusUnauthorized)

	// listing reads are public
	expectStatus(t, s.do(t, http.MethodGet, "/v1/listings", "", nil), http.StatusOK)
}

func TestCheckoutFlow(t *testing.T) {
	s := newServer(t)
	listingID := s.createListing(t, "seller-1")
	buyerA := token(t, "buyer-a", "")
	buyerB := token(t, "buyer-b", "")

	rec := s.do(t, http.MethodPost, "/v1/listings/"+listingID+"/lock", buyerA, nil)
	expectStatus(t, rec, http.StatusOK)
	var lock response.LockResponse
	decode(t, rec, &lock)
	if !lock.ExpiresAt.Equal(t0.Add(usecase.DefaultLockDuration)) {
		t.Errorf("unexpected lock expiry %v", lock.ExpiresAt)
	}

	rec = s.do(t, http.MethodPost, "/v1/listings/"+listingID+"/lock", buyerB, nil)
	expectStatus(t, rec, http.StatusConflict)
	var errResp response.ErrorResponse
	decode(t, rec, &errResp)
	if errResp.Code != "already_locked" {
		t.Errorf("expected already_locked, got %q", errResp.Code)
	}

	rec = s.do(t, http.MethodGet, "/v1/listings/"+listingID, "", nil)
	expectStatus(t, rec, http.StatusOK)
	var view listingdto.ListingOutput
	decode(t, rec, &view)
	if !view.Locked {
		t.Error("expected listing to read as locked")
	}

	rec = s.do(t, http.MethodPost, "/v1/listings/"+listingID+"/orders", buyerA, nil)
	expectStatus(t, rec, http.StatusCreated)
	var created struct {
		Created bool                 `json:"created"`
		Order   orderdto.OrderOutput `json:"order"`
	}
	decode(t, rec, &created)
	orderID := created.Order.ID

	rec = s.do(t, http.MethodPost, "/v1/listings/"+listingID+"/orders", buyerA, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &created)
	if created.Created || created.Order.ID != orderID {
		t.Errorf("expected the existing order back, got %+v", created)
	}

	expectStatus(t, s.do(t, http.MethodGet, "/v1/orders/"+orderID, buyerB, nil), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodPost, "/v1/orders/"+orderID+"/payment-session", token(t, "seller-1", ""),
		map[string]string{"session_ref": "cs_1"}), http.StatusForbidden)

	rec = s.do(t, http.MethodPost, "/v1/orders/"+orderID+"/payment-session", buyerA, map[string]string{"session_ref": "cs_1"})
	expectStatus(t, rec, http.StatusOK)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","created":1748772000,"data":{"object":{"id":"cs_1"}}}`)
	rec = s.webhook(t, payload, s.clock.Now())
	expectStatus(t, rec, http.StatusOK)
	var hook response.WebhookResponse
	decode(t, rec, &hook)
	if hook.Result != string(usecase.IngestProcessed) {
		t.Errorf("expected processed, got %q", hook.Result)
	}

	rec = s.webhook(t, payload, s.clock.Now())
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &hook)
	if hook.Result != string(usecase.IngestDuplicate) {
		t.Errorf("expected duplicate, got %q", hook.Result)
	}

	rec = s.do(t, http.MethodGet, "/v1/orders/by-session/cs_1", buyerA, nil)
	expectStatus(t, rec, http.StatusOK)
	var order orderdto.OrderOutput
	decode(t, rec, &order)
	if order.Status != string(domain.StatusPaid) {
		t.Errorf("expected paid order, got %s", order.Status)
	}

	rec = s.do(t, http.MethodGet, "/v1/orders/"+orderID+"/history", buyerA, nil)
	expectStatus(t, rec, http.StatusOK)
	var history []orderdto.TransitionOutput
	decode(t, rec, &history)
	if len(history) == 0 || history[len(history)-1].To != string(domain.StatusPaid) {
		t.Errorf("expected history to end in paid, got %+v", history)
	}

	rec = s.do(t, http.MethodGet, "/v1/listings/"+listingID, "", nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &view)
	if view.Status != string(domain.ListingSold) {
		t.Errorf("expected sold listing, got %s", view.Status)
	}
	expectStatus(t, s.do(t, http.MethodPost, "/v1/listings/"+listingID+"/lock", buyerB, nil), http.StatusConflict)
}

func TestLockGuards(t *testing.T) {
	s := newServer(t)
	listingID := s.createListing(t, "seller-1")

	rec := s.do(t, http.MethodPost, "/v1/listings/"+listingID+"/lock", token(t, "seller-1", ""), nil)
	expectStatus(t, rec, http.StatusForbidden)

	expectStatus(t, s.do(t, http.MethodPost, "/v1/listings/missing/lock", token(t, "buyer-a", ""), nil), http.StatusNotFound)

	expectStatus(t, s.do(t, http.MethodDelete, "/v1/listings/"+listingID, token(t, "seller-1", ""), nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPost, "/v1/listings/"+listingID+"/lock", token(t, "buyer-a", ""), nil), http.StatusGone)
}

func TestWebhookRejectsBadInput(t *testing.T) {
	s := newServer(t)
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(payload))
	req.Header.Set(payment.SignatureHeader, payment.Sign("wrong", payload, t0))
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)

	expectStatus(t, s.webhook(t, payload, t0.Add(-10*time.Minute)), http.StatusBadRequest)
	expectStatus(t, s.webhook(t, []byte(`{"type":"x"}`), t0), http.StatusBadRequest)

	// unknown session: acknowledged so the provider stops retrying
	rec = s.webhook(t, payload, t0)
	expectStatus(t, rec, http.StatusOK)
	var hook response.WebhookResponse
	decode(t, rec, &hook)
	if hook.Result != string(usecase.IngestRejected) {
		t.Errorf("expected rejected, got %q", hook.Result)
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newServer(t)
	listingID := s.createListing(t, "seller-1")
	expectStatus(t, s.do(t, http.MethodPost, "/v1/listings/"+listingID+"/lock", token(t, "buyer-a", ""), nil), http.StatusOK)

	expectStatus(t, s.do(t, http.MethodPost, "/v1/admin/sweeps", token(t, "buyer-a", ""), nil), http.StatusForbidden)

	s.clock.Advance(usecase.DefaultLockDuration + time.Second)
	rec := s.do(t, http.MethodPost, "/v1/admin/sweeps", token(t, "ops", RoleAdmin), nil)
	expectStatus(t, rec, http.StatusOK)
	var report usecase.SweepReport
	decode(t, rec, &report)
	if report.Released != 1 {
		t.Errorf("expected one released lock, got %+v", report)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/v1/admin/ledger/purge?older_than=bogus", token(t, "ops", RoleAdmin), nil), http.StatusBadRequest)
	rec = s.do(t, http.MethodPost, "/v1/admin/ledger/purge?older_than=1h", token(t, "ops", RoleAdmin), nil)
	expectStatus(t, rec, http.StatusOK)
}
