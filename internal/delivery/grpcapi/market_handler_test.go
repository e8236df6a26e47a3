package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/memory"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
	listingdto "github.com/LavaJover/lockin-market-service/internal/usecase/dto/listing"
)

const secret = "grpc-secret"

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.MarketEvent) error { return nil }

type harness struct {
	conn      *grpc.ClientConn
	client    *MarketServiceClient
	listingID string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewManual(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	m := metrics.NewMarketMetrics(prometheus.NewRegistry())
	events := usecase.NewEventNotifier(nopPublisher{}, m)

	listings := usecase.NewDefaultListingUsecase(store, store.Listings(), store.Orders(), clk, events, m)
	h := NewMarketHandler(
		listings,
		usecase.NewDefaultLockUsecase(store, store.Listings(), store.Orders(), clk, usecase.DefaultLockDuration, events, m),
		usecase.NewDefaultOrderUsecase(store, store.Orders(), store.Listings(), clk, events, m),
		usecase.NewDefaultSweeperUsecase(store, store.Listings(), store.Orders(), clk, 0, nil, 0, events, m),
		usecase.NewDefaultLedgerUsecase(store.Events(), clk, usecase.DefaultLedgerRetention, usecase.DefaultPurgeBatchSize, m),
	)

	listing, err := listings.CreateListing(context.Background(), &listingdto.CreateListingInput{
		SellerID:   "seller-1",
		Title:      "Desk lamp",
		PriceCents: 4200,
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv, _ := NewServer(h, secret)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &harness{conn: conn, client: NewMarketServiceClient(conn), listingID: listing.ID}
}

func as(t *testing.T, sub, role string) context.Context {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub}
	if role != "" {
		claims["role"] = role
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+signed)
}

func args(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func expectCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if got := status.Code(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatal(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING, got %s", resp.GetStatus())
	}
}

func TestMarketService_RequiresToken(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.Call(context.Background(), "GetListing", args(t, map[string]interface{}{"listing_id": h.listingID}))
	expectCode(t, err, codes.Unauthenticated)
}

func TestMarketService_LockAndOrder(t *testing.T) {
	h := newHarness(t)
	listing := args(t, map[string]interface{}{"listing_id": h.listingID})

	out, err := h.client.Call(as(t, "buyer-a", ""), "AcquireLock", listing)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if out.GetFields()["listing_id"].GetStringValue() != h.listingID {
		t.Errorf("unexpected response %v", out)
	}

	_, err = h.client.Call(as(t, "buyer-b", ""), "AcquireLock", listing)
	expectCode(t, err, codes.FailedPrecondition)
	_, err = h.client.Call(as(t, "seller-1", ""), "AcquireLock", listing)
	expectCode(t, err, codes.PermissionDenied)

	out, err = h.client.Call(as(t, "buyer-a", ""), "CreateOrder", listing)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if !out.GetFields()["created"].GetBoolValue() {
		t.Error("expected created=true")
	}
	orderID := out.GetFields()["order"].GetStructValue().GetFields()["id"].GetStringValue()

	_, err = h.client.Call(as(t, "buyer-b", ""), "GetOrder", args(t, map[string]interface{}{"order_id": orderID}))
	expectCode(t, err, codes.NotFound)

	out, err = h.client.Call(as(t, "buyer-a", ""), "CancelOrder", args(t, map[string]interface{}{"order_id": orderID}))
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := out.GetFields()["status"].GetStringValue(); got != string(domain.StatusCancelled) {
		t.Errorf("expected cancelled, got %s", got)
	}
}

func TestMarketService_AdminMethods(t *testing.T) {
	h := newHarness(t)
	empty := &structpb.Struct{}

	_, err := h.client.Call(as(t, "buyer-a", ""), "RunSweep", empty)
	expectCode(t, err, codes.PermissionDenied)

	if _, err := h.client.Call(as(t, "ops", RoleAdmin), "RunSweep", empty); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	_, err = h.client.Call(as(t, "ops", RoleAdmin), "PurgeEvents", args(t, map[string]interface{}{"older_than": "soon"}))
	expectCode(t, err, codes.InvalidArgument)

	out, err := h.client.Call(as(t, "ops", RoleAdmin), "PurgeEvents", empty)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if out.GetFields()["deleted"].GetNumberValue() != 0 {
		t.Errorf("expected nothing purged, got %v", out)
	}
}
