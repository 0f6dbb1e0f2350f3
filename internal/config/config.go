package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"

	EventsNone  = "none"
	EventsKafka = "kafka"
	EventsAMQP  = "amqp"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values come from the environment, optionally seeded from a .env file,
// with defaults that let the binary run locally with no backing services.
type ServerConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	PGDSN          string `env:"PG_DSN"`
	RunMigrations  bool   `env:"MIGRATE" envDefault:"false"`
	MongoURI       string `env:"MONGO_URI"`
	MongoDatabase  string `env:"MONGO_DATABASE" envDefault:"carpool"`

	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	SuggestCacheTTL time.Duration `env:"SUGGEST_CACHE_TTL" envDefault:"0s"`

	EventsBackend string   `env:"EVENTS_BACKEND" envDefault:"none"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic    string   `env:"KAFKA_TOPIC" envDefault:"ride-request-events"`
	AMQPURL       string   `env:"AMQP_URL"`
	AMQPQueue     string   `env:"AMQP_QUEUE" envDefault:"ride-request-events"`

	SuggestCandidateLimit int `env:"SUGGEST_CANDIDATE_LIMIT" envDefault:"200"`
	SuggestResultLimit    int `env:"SUGGEST_RESULT_LIMIT" envDefault:"50"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// ConsumerConfig drives the event consumer that projects ride activity into
// Redis.
type ConsumerConfig struct {
	MetricsAddr   string   `env:"METRICS_ADDR" envDefault:":2112"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic    string   `env:"KAFKA_TOPIC" envDefault:"ride-request-events"`
	KafkaGroup    string   `env:"KAFKA_GROUP" envDefault:"carpool-activity"`
	RedisAddr     string   `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string   `env:"REDIS_PASSWORD"`
	LogLevel      string   `env:"LOG_LEVEL" envDefault:"info"`
}

func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := load(&cfg); err != nil {
		return cfg, err
	}
	cfg.normalize()
	return cfg, cfg.validate()
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	var cfg ConsumerConfig
	if err := load(&cfg); err != nil {
		return cfg, err
	}
	cfg.KafkaBrokers = splitAndTrim(cfg.KafkaBrokers)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	var errs []error
	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS must not be empty"))
	}
	if strings.TrimSpace(cfg.KafkaTopic) == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC must not be empty"))
	}
	return cfg, errors.Join(errs...)
}

// load reads an optional .env file from the working directory, then parses
// the environment into target. Variables already set take precedence over
// the file.
func load(target any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *ServerConfig) normalize() {
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	c.EventsBackend = strings.ToLower(strings.TrimSpace(c.EventsBackend))
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.KafkaBrokers = splitAndTrim(c.KafkaBrokers)
}

func (c ServerConfig) validate() error {
	var errs []error

	switch c.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if c.PGDSN == "" {
			errs = append(errs, errors.New("PG_DSN is required when STORAGE_BACKEND=postgres"))
		}
	case StorageMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORAGE_BACKEND=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	switch c.EventsBackend {
	case EventsNone:
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when EVENTS_BACKEND=kafka"))
		}
	case EventsAMQP:
		if c.AMQPURL == "" {
			errs = append(errs, errors.New("AMQP_URL is required when EVENTS_BACKEND=amqp"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_BACKEND %q", c.EventsBackend))
	}

	if c.SuggestCandidateLimit <= 0 {
		errs = append(errs, errors.New("SUGGEST_CANDIDATE_LIMIT must be > 0"))
	}
	if c.SuggestResultLimit <= 0 {
		errs = append(errs, errors.New("SUGGEST_RESULT_LIMIT must be > 0"))
	}
	if c.SuggestCacheTTL < 0 {
		errs = append(errs, errors.New("SUGGEST_CACHE_TTL must be >= 0"))
	}

	return errors.Join(errs...)
}

func splitAndTrim(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
