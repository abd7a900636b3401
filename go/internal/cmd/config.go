package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/rankparty/go/internal/dbconfig"
	"github.com/mcdev12/rankparty/go/internal/gameconfig"
	"github.com/mcdev12/rankparty/go/internal/gateway"
	"github.com/rs/zerolog"
)

// StoreDriver selects where game state lives
type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StorePostgres StoreDriver = "postgres"
)

type Config struct {
	Port             string
	LogLevel         zerolog.Level
	StoreDriver      StoreDriver
	Database         dbconfig.Config
	BroadcastMode    gateway.BroadcastMode
	NATSURL          string
	ConsumerName     string
	PublicURL        string
	AdminSecretHash  string
	GameConfigPath   string
	FallbackInterval time.Duration
	RelayBatchSize   int
	HealthThreshold  time.Duration
	ShutdownTimeout  time.Duration
	AllowedOrigins   []string
	Game             *gameconfig.Config

	// AutoAdvanceDelay overrides the game config value when set; zero disables it
	AutoAdvanceDelay *time.Duration
}

func loadConfig() (*Config, error) {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         level,
		StoreDriver:      StoreDriver(getEnv("STORE_DRIVER", string(StoreMemory))),
		Database:         dbconfig.NewConfigFromEnv(),
		BroadcastMode:    gateway.BroadcastMode(getEnv("BROADCAST_MODE", string(gateway.BroadcastLocal))),
		NATSURL:          os.Getenv("NATS_URL"),
		ConsumerName:     os.Getenv("GATEWAY_CONSUMER_NAME"),
		PublicURL:        os.Getenv("PUBLIC_URL"),
		AdminSecretHash:  os.Getenv("ADMIN_SECRET_HASH"),
		GameConfigPath:   os.Getenv("GAME_CONFIG"),
		FallbackInterval: getEnvAsDuration("FALLBACK_INTERVAL", 5*time.Second),
		RelayBatchSize:   getEnvAsInt("RELAY_BATCH_SIZE", 100),
		HealthThreshold:  getEnvAsDuration("HEALTH_THRESHOLD", 10*time.Minute),
		ShutdownTimeout:  getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		AllowedOrigins:   []string{getEnv("ALLOWED_ORIGIN", "*")},
	}

	if v := os.Getenv("AUTO_ADVANCE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTO_ADVANCE_DELAY: %w", err)
		}
		cfg.AutoAdvanceDelay = &d
	}

	switch cfg.StoreDriver {
	case StoreMemory, StorePostgres:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	switch cfg.BroadcastMode {
	case gateway.BroadcastLocal:
	case gateway.BroadcastJetStream:
		// the relay only publishes to JetStream from the Postgres outbox
		if cfg.StoreDriver != StorePostgres {
			return nil, fmt.Errorf("BROADCAST_MODE=%s requires STORE_DRIVER=%s", cfg.BroadcastMode, StorePostgres)
		}
	default:
		return nil, fmt.Errorf("unknown BROADCAST_MODE %q", cfg.BroadcastMode)
	}

	game, err := gameconfig.Load(cfg.GameConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Game = game

	return cfg, nil
}

// autoAdvanceDelay resolves the env override against the game config
func (c *Config) autoAdvanceDelay() time.Duration {
	if c.AutoAdvanceDelay != nil {
		return *c.AutoAdvanceDelay
	}
	return c.Game.AutoAdvanceDelay
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
