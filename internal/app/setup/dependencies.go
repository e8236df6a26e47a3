package setup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/config"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/kafka"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/memory"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/migrate"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/notifier"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres/repository"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/rabbitmq"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/redis"
	"github.com/LavaJover/lockin-market-service/internal/txn"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	BrokerNone     = "none"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
	BrokerCallback = "callback"
)

type Dependencies struct {
	Config       *config.MarketConfig
	Clock        clock.Clock
	DB           *gorm.DB
	Tx           txn.Manager
	Repositories *Repositories
	Publisher    domain.EventPublisher
	Redis        *goredis.Client
	Lease        usecase.Lease
	Registry     *prometheus.Registry
	Metrics      *metrics.MarketMetrics

	closers []func() error
}

type Repositories struct {
	ListingRepo domain.ListingRepository
	OrderRepo   domain.OrderRepository
	EventRepo   domain.EventLedgerRepository
}

func InitializeDependencies(ctx context.Context, cfg *config.MarketConfig) (*Dependencies, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := &Dependencies{
		Config:   cfg,
		Clock:    clock.NewSystem(),
		Registry: reg,
		Metrics:  metrics.NewMarketMetrics(reg),
	}

	if err := deps.initStorage(); err != nil {
		deps.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	publisher, err := initPublisher(cfg, deps.Clock)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("event publisher: %w", err)
	}
	if publisher != nil {
		deps.Publisher = publisher
		deps.closers = append(deps.closers, publisher.Close)
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		deps.Redis = client
		deps.Lease = redis.NewLease(client)
		deps.closers = append(deps.closers, client.Close)
	}

	return deps, nil
}

func (d *Dependencies) initStorage() error {
	switch d.Config.Storage.Driver {
	case StorageMemory:
		slog.Warn("using in-memory storage; state is lost on restart")
		store := memory.NewStore()
		d.Tx = store
		d.Repositories = &Repositories{
			ListingRepo: store.Listings(),
			OrderRepo:   store.Orders(),
			EventRepo:   store.Events(),
		}
		return nil
	case StoragePostgres:
		db, err := postgres.InitDB(d.Config.MarketDB.Dsn)
		if err != nil {
			return err
		}
		d.DB = db
		if sqlDB, err := db.DB(); err == nil {
			d.closers = append(d.closers, sqlDB.Close)
		}
		if d.Config.MarketDB.AutoMigrate {
			if err := migrate.RunMigrations(db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
		}
		d.Tx = postgres.NewTxManager(db)
		d.Repositories = &Repositories{
			ListingRepo: repository.NewDefaultListingRepository(db),
			OrderRepo:   repository.NewDefaultOrderRepository(db),
			EventRepo:   repository.NewDefaultEventLedgerRepository(db),
		}
		return nil
	default:
		return fmt.Errorf("unknown storage driver %q", d.Config.Storage.Driver)
	}
}

type closablePublisher interface {
	domain.EventPublisher
	Close() error
}

func initPublisher(cfg *config.MarketConfig, clk clock.Clock) (closablePublisher, error) {
	switch cfg.Events.Broker {
	case BrokerNone, "":
		return nil, nil
	case BrokerKafka:
		return kafka.NewKafkaPublisher(kafkaConfig(cfg, cfg.KafkaService.Topic))
	case BrokerRabbitMQ:
		if cfg.RabbitMQ.URL == "" {
			return nil, fmt.Errorf("rabbitmq url is required")
		}
		return rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue), nil
	case BrokerCallback:
		if cfg.Callback.URL == "" {
			return nil, fmt.Errorf("callback url is required")
		}
		return notifier.NewCallbackPublisher(cfg.Callback.URL, cfg.Callback.SigningSecret, cfg.Callback.Timeout, clk), nil
	default:
		return nil, fmt.Errorf("unknown events broker %q", cfg.Events.Broker)
	}
}

func kafkaConfig(cfg *config.MarketConfig, topic string) kafka.KafkaConfig {
	return kafka.KafkaConfig{
		Brokers:    cfg.KafkaService.Brokers,
		Topic:      topic,
		Username:   cfg.KafkaService.Username,
		Password:   cfg.KafkaService.Password,
		Mechanism:  cfg.KafkaService.SASLMechanism,
		TLSEnabled: cfg.KafkaService.TLS,
	}
}

// PaymentSubscriber returns a Kafka subscriber for pre-verified payment
// events, or nil when no topic is configured.
func (d *Dependencies) PaymentSubscriber() domain.SubscriberPort {
	if d.Config.KafkaService.PaymentEventsTopic == "" || len(d.Config.KafkaService.Brokers) == 0 {
		return nil
	}
	return kafka.NewKafkaSubscriber(kafkaConfig(d.Config, d.Config.KafkaService.PaymentEventsTopic))
}

// Close releases resources in reverse order of acquisition.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			slog.Warn("close dependency", "error", err)
		}
	}
	d.closers = nil
}
