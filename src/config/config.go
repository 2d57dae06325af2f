// Package config provides configuration management for the order and analytics services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"orderflow/src/contracts"
)

// Ledger backends accepted in LEDGER_BACKEND.
const (
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

// Config holds the process-wide configuration. It is read once at startup
// and passed by value or pointer into constructors; nothing mutates it afterwards.
type Config struct {
	// Brokers is the list of seed broker addresses (host:port).
	Brokers []string
	// Topic is the orders topic both services use.
	Topic string
	// Group is the consumer group of the analytics service.
	Group string

	// HTTPAddr is the listen address of the order service.
	HTTPAddr string

	// Concurrency is the number of group members run by one analytics process.
	Concurrency int
	// AutoCommitInterval is how often consumed offsets are committed.
	AutoCommitInterval time.Duration
	// MaxPollRecords bounds the records returned by one fetch.
	MaxPollRecords int

	// ProducerRetries bounds client side retries of a produce request.
	ProducerRetries int

	// Partitions and ReplicationFactor are the topic desired state used by
	// `orderflow topics create`.
	Partitions        int
	ReplicationFactor int

	// LedgerBackend selects duplicate tracking: memory, postgres or redis.
	LedgerBackend string
	PostgresDSN   string
	RedisAddr     string

	LogLevel  string
	LogFormat string
}

// Default returns the configuration used when no environment is set.
func Default() Config {
	return Config{
		Brokers:            []string{"localhost:9092"},
		Topic:              contracts.TopicOrders,
		Group:              contracts.GroupAnalytics,
		HTTPAddr:           ":8080",
		Concurrency:        1,
		AutoCommitInterval: 5 * time.Second,
		MaxPollRecords:     100,
		ProducerRetries:    3,
		Partitions:         contracts.DefaultPartitions,
		ReplicationFactor:  contracts.DefaultReplicationFactor,
		LedgerBackend:      LedgerMemory,
		LogLevel:           "info",
		LogFormat:          "console",
	}
}

// LoadFromEnv loads configuration from environment variables. A .env file in
// the working directory is read first when present; real environment
// variables win over it.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Brokers = splitList(v)
	}
	cfg.Topic = stringEnv("ORDERS_TOPIC", cfg.Topic)
	cfg.Group = stringEnv("CONSUMER_GROUP", cfg.Group)
	cfg.HTTPAddr = stringEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LedgerBackend = strings.ToLower(stringEnv("LEDGER_BACKEND", cfg.LedgerBackend))
	cfg.PostgresDSN = stringEnv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = stringEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.LogLevel = stringEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = stringEnv("LOG_FORMAT", cfg.LogFormat)

	var err error
	if cfg.Concurrency, err = intEnv("CONSUMER_CONCURRENCY", cfg.Concurrency); err != nil {
		return nil, err
	}
	if cfg.MaxPollRecords, err = intEnv("MAX_POLL_RECORDS", cfg.MaxPollRecords); err != nil {
		return nil, err
	}
	if cfg.ProducerRetries, err = intEnv("PRODUCER_RETRIES", cfg.ProducerRetries); err != nil {
		return nil, err
	}
	if cfg.Partitions, err = intEnv("TOPIC_PARTITIONS", cfg.Partitions); err != nil {
		return nil, err
	}
	if cfg.ReplicationFactor, err = intEnv("TOPIC_REPLICATION", cfg.ReplicationFactor); err != nil {
		return nil, err
	}
	if v := os.Getenv("AUTO_COMMIT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("AUTO_COMMIT_INTERVAL: %w", err)
		}
		cfg.AutoCommitInterval = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoadFromEnv loads configuration from environment variables and panics on error.
// This is useful for initialization in main() where configuration errors should be fatal.
func MustLoadFromEnv() *Config {
	cfg, err := LoadFromEnv()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case len(c.Brokers) == 0:
		return fmt.Errorf("KAFKA_BROKERS must name at least one broker")
	case c.Topic == "":
		return fmt.Errorf("ORDERS_TOPIC must not be empty")
	case c.Group == "":
		return fmt.Errorf("CONSUMER_GROUP must not be empty")
	case c.Concurrency < 1:
		return fmt.Errorf("CONSUMER_CONCURRENCY must be at least 1, got %d", c.Concurrency)
	case c.MaxPollRecords < 1:
		return fmt.Errorf("MAX_POLL_RECORDS must be at least 1, got %d", c.MaxPollRecords)
	case c.ProducerRetries < 0:
		return fmt.Errorf("PRODUCER_RETRIES must not be negative, got %d", c.ProducerRetries)
	case c.Partitions < 1:
		return fmt.Errorf("TOPIC_PARTITIONS must be at least 1, got %d", c.Partitions)
	case c.ReplicationFactor < 1:
		return fmt.Errorf("TOPIC_REPLICATION must be at least 1, got %d", c.ReplicationFactor)
	case c.AutoCommitInterval <= 0:
		return fmt.Errorf("AUTO_COMMIT_INTERVAL must be positive")
	}

	switch c.LedgerBackend {
	case LedgerMemory:
	case LedgerPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres ledger")
		}
	case LedgerRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis ledger")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}
	return nil
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
