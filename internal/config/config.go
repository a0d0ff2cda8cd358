package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the api and worker processes.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Issuance IssuanceConfig
	Log      LogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds ledger database configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
type DBConfig struct {
	Host       string `envconfig:"DB_HOST" default:"localhost"`
	Port       int    `envconfig:"DB_PORT" default:"5432"`
	User       string `envconfig:"DB_USER" default:"postgres"`
	Password   string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name       string `envconfig:"DB_NAME" default:"coupon_db"`
	SSLMode    string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns   int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns   int    `envconfig:"DB_MIN_CONNS" default:"5"`
	MaxRetries int    `envconfig:"DB_MAX_RETRIES" default:"5"`
	Migrate    bool   `envconfig:"DB_MIGRATE" default:"true"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// RedisConfig holds reservation store configuration.
type RedisConfig struct {
	Addr       string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password   string `envconfig:"REDIS_PASSWORD" default:""`
	DB         int    `envconfig:"REDIS_DB" default:"0"`
	PoolSize   int    `envconfig:"REDIS_POOL_SIZE" default:"50"`
	MaxRetries int    `envconfig:"REDIS_MAX_RETRIES" default:"5"`
}

// KafkaConfig holds confirmation queue configuration.
type KafkaConfig struct {
	Brokers           []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	ClientID          string   `envconfig:"KAFKA_CLIENT_ID" default:"coupon-issuance"`
	GroupID           string   `envconfig:"KAFKA_GROUP_ID" default:"coupon-issue-confirmation"`
	DLTGroupID        string   `envconfig:"KAFKA_DLT_GROUP_ID" default:"coupon-issue-compensation"`
	Partitions        int      `envconfig:"KAFKA_PARTITIONS" default:"12"`
	ReplicationFactor int      `envconfig:"KAFKA_REPLICATION_FACTOR" default:"1"`
	EnsureTopics      bool     `envconfig:"KAFKA_ENSURE_TOPICS" default:"true"`
}

// IssuanceConfig holds the reservation lifetimes and confirmation retry policy.
type IssuanceConfig struct {
	ReservationTTL      time.Duration `envconfig:"RESERVATION_TTL" default:"10m"`
	IssuedRetention     time.Duration `envconfig:"ISSUED_RETENTION" default:"720h"`
	ConfirmMaxAttempts  int           `envconfig:"CONFIRM_MAX_ATTEMPTS" default:"3"`
	ConfirmBackoffBase  time.Duration `envconfig:"CONFIRM_BACKOFF_BASE" default:"1s"`
	ConfirmBackoffMax   time.Duration `envconfig:"CONFIRM_BACKOFF_MAX" default:"10s"`
	SweepSchedule       string        `envconfig:"SWEEP_SCHEDULE" default:"@every 1m"`
	CatalogSyncSchedule string        `envconfig:"CATALOG_SYNC_SCHEDULE" default:"@every 5m"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if c.Issuance.ReservationTTL <= 0 {
		return fmt.Errorf("RESERVATION_TTL must be positive, got %s", c.Issuance.ReservationTTL)
	}
	if c.Issuance.IssuedRetention < c.Issuance.ReservationTTL {
		return fmt.Errorf("ISSUED_RETENTION (%s) must not be shorter than RESERVATION_TTL (%s)",
			c.Issuance.IssuedRetention, c.Issuance.ReservationTTL)
	}
	if c.Issuance.ConfirmMaxAttempts < 1 {
		return fmt.Errorf("CONFIRM_MAX_ATTEMPTS must be at least 1, got %d", c.Issuance.ConfirmMaxAttempts)
	}
	return nil
}
