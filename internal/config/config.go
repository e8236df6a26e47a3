package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const ConfigPathEnv = "MARKET_CONFIG_PATH"

type MarketConfig struct {
	Env          string `yaml:"env" env:"MARKET_ENV" env-default:"local"`
	HTTPServer   `yaml:"http_server"`
	GRPCServer   `yaml:"grpc_server"`
	Storage      `yaml:"storage"`
	MarketDB     `yaml:"market_db"`
	LogConfig    `yaml:"log_config"`
	Locking      `yaml:"locking"`
	Sweeper      `yaml:"sweeper"`
	Ledger       `yaml:"ledger"`
	Events       `yaml:"events"`
	KafkaService `yaml:"kafka-service"`
	RabbitMQ     `yaml:"rabbitmq"`
	Callback     `yaml:"callback"`
	Redis        `yaml:"redis"`
	RateLimit    `yaml:"rate_limit"`
	Auth         `yaml:"auth"`
	Webhook      `yaml:"webhook"`
}

type HTTPServer struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

func (s HTTPServer) Address() string { return net.JoinHostPort(s.Host, s.Port) }

type GRPCServer struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50051"`
}

func (s GRPCServer) Address() string { return net.JoinHostPort(s.Host, s.Port) }

type Storage struct {
	// Driver is "postgres" or "memory".
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

type MarketDB struct {
	Dsn         string `yaml:"dsn" env:"MARKET_DB_DSN"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"MARKET_DB_AUTO_MIGRATE" env-default:"true"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`
	LogOutput string `yaml:"log_output" env:"LOG_OUTPUT" env-default:"stdout"`
}

type Locking struct {
	LockDuration time.Duration `yaml:"lock_duration" env:"LOCK_DURATION" env-default:"10m"`
}

type Sweeper struct {
	Interval  time.Duration `yaml:"interval" env:"SWEEPER_INTERVAL" env-default:"1m"`
	BatchSize int           `yaml:"batch_size" env:"SWEEPER_BATCH_SIZE" env-default:"100"`
	LeaseTTL  time.Duration `yaml:"lease_ttl" env:"SWEEPER_LEASE_TTL" env-default:"50s"`
}

type Ledger struct {
	Retention      time.Duration `yaml:"retention" env:"LEDGER_RETENTION" env-default:"168h"`
	PurgeInterval  time.Duration `yaml:"purge_interval" env:"LEDGER_PURGE_INTERVAL" env-default:"24h"`
	PurgeBatchSize int           `yaml:"purge_batch_size" env:"LEDGER_PURGE_BATCH_SIZE" env-default:"500"`
}

type Events struct {
	// Broker is "kafka", "rabbitmq", "callback" or "none".
	Broker string `yaml:"broker" env:"EVENTS_BROKER" env-default:"none"`
}

type KafkaService struct {
	Brokers            []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic              string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"market-events"`
	PaymentEventsTopic string   `yaml:"payment_events_topic" env:"KAFKA_PAYMENT_EVENTS_TOPIC"`
	GroupID            string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"market-service"`
	SASLMechanism      string   `yaml:"sasl_mechanism" env:"KAFKA_SASL_MECHANISM"`
	Username           string   `yaml:"username" env:"KAFKA_USERNAME"`
	Password           string   `yaml:"password" env:"KAFKA_PASSWORD"`
	TLS                bool     `yaml:"tls" env:"KAFKA_TLS"`
}

type RabbitMQ struct {
	URL   string `yaml:"url" env:"RABBITMQ_URL"`
	Queue string `yaml:"queue" env:"RABBITMQ_QUEUE" env-default:"market-events"`
}

type Callback struct {
	URL           string        `yaml:"url" env:"CALLBACK_URL"`
	SigningSecret string        `yaml:"signing_secret" env:"CALLBACK_SIGNING_SECRET"`
	Timeout       time.Duration `yaml:"timeout" env:"CALLBACK_TIMEOUT" env-default:"5s"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type RateLimit struct {
	Enabled        bool          `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	Capacity       int           `yaml:"capacity" env:"RATE_LIMIT_CAPACITY" env-default:"10"`
	RefillTokens   int           `yaml:"refill_tokens" env:"RATE_LIMIT_REFILL_TOKENS" env-default:"1"`
	RefillInterval time.Duration `yaml:"refill_interval" env:"RATE_LIMIT_REFILL_INTERVAL" env-default:"6s"`
	TTL            time.Duration `yaml:"ttl" env:"RATE_LIMIT_TTL" env-default:"10m"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type Webhook struct {
	SigningSecret string        `yaml:"signing_secret" env:"WEBHOOK_SIGNING_SECRET"`
	Tolerance     time.Duration `yaml:"tolerance" env:"WEBHOOK_TOLERANCE" env-default:"5m"`
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*MarketConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	var cfg MarketConfig
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *MarketConfig {
	configPath := os.Getenv(ConfigPathEnv)
	if configPath == "" {
		log.Fatalf("%s was not found\n", ConfigPathEnv)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *MarketConfig) validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.MarketDB.Dsn == "" {
			return fmt.Errorf("market_db.dsn is required for the postgres storage driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Events.Broker {
	case "kafka":
		if len(c.KafkaService.Brokers) == 0 {
			return fmt.Errorf("kafka-service.brokers is required when events.broker is kafka")
		}
	case "rabbitmq":
		if c.RabbitMQ.URL == "" {
			return fmt.Errorf("rabbitmq.url is required when events.broker is rabbitmq")
		}
	case "callback":
		if c.Callback.URL == "" {
			return fmt.Errorf("callback.url is required when events.broker is callback")
		}
	case "none":
	default:
		return fmt.Errorf("unknown events broker %q", c.Events.Broker)
	}

	if c.Locking.LockDuration <= 0 {
		return fmt.Errorf("locking.lock_duration must be positive")
	}
	if c.RateLimit.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("rate_limit requires redis to be enabled")
	}
	return nil
}
