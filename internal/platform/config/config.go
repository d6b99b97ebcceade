package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config captures process configuration. Values come from the environment so
// main stays lean; defaults suit local development.
type Config struct {
	HTTP struct {
		Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
		RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	}

	Auth struct {
		JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	}

	Postgres struct {
		URL string `env:"POSTGRES_URL"`
	}

	Redis RedisConfig

	Kafka struct {
		Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
		Topic   string   `env:"KAFKA_NOTIFY_TOPIC" envDefault:"consular.lifecycle-events"`
	}

	Availability struct {
		CacheTTL          time.Duration `env:"AVAILABILITY_CACHE_TTL" envDefault:"30s"`
		ScheduleCacheSize int           `env:"SCHEDULE_CACHE_SIZE" envDefault:"512"`
	}
}

// RedisConfig configures the optional Redis availability cache.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Load builds a Config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
