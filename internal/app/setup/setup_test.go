package setup

import (
	"context"
	"testing"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/config"
	listingdto "github.com/LavaJover/lockin-market-service/internal/usecase/dto/listing"
)

func memoryConfig() *config.MarketConfig {
	cfg := &config.MarketConfig{}
	cfg.Storage.Driver = StorageMemory
	cfg.Events.Broker = BrokerNone
	cfg.Locking.LockDuration = 10 * time.Minute
	cfg.Sweeper.BatchSize = 10
	cfg.Ledger.Retention = time.Hour
	cfg.Ledger.PurgeBatchSize = 10
	cfg.Webhook.Tolerance = 5 * time.Minute
	return cfg
}

func TestInitialize_MemoryStorage(t *testing.T) {
	deps, err := InitializeDependencies(context.Background(), memoryConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer deps.Close()

	if deps.DB != nil || deps.Publisher != nil || deps.Lease != nil {
		t.Errorf("expected no external dependencies, got %+v", deps)
	}
	if deps.PaymentSubscriber() != nil {
		t.Error("expected no payment subscriber without a topic")
	}

	ucs := InitializeUseCases(deps)
	listing, err := ucs.ListingUsecase.CreateListing(context.Background(), &listingdto.CreateListingInput{
		SellerID:   "seller-1",
		Title:      "Chair",
		PriceCents: 900,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ucs.LockUsecase.Acquire(context.Background(), listing.ID, "buyer-a"); err != nil {
		t.Fatalf("acquire through wired usecases: %v", err)
	}
}

func TestInitialize_RejectsUnknownSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.MarketConfig)
	}{
		{"storage driver", func(c *config.MarketConfig) { c.Storage.Driver = "sqlite" }},
		{"broker", func(c *config.MarketConfig) { c.Events.Broker = "nats" }},
		{"kafka without brokers", func(c *config.MarketConfig) { c.Events.Broker = BrokerKafka }},
		{"callback without url", func(c *config.MarketConfig) { c.Events.Broker = BrokerCallback }},
		{"rabbitmq without url", func(c *config.MarketConfig) { c.Events.Broker = BrokerRabbitMQ }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(cfg)
			if _, err := InitializeDependencies(context.Background(), cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
