package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Redis holds broadcast/queue connection settings.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config is the full service configuration. Routing topology (shard
// count, hash seed) is explicit here and nowhere else; it must never be
// derived from hostnames or deployment ordinals.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	DatabaseURL string `yaml:"database_url"`
	Redis       Redis  `yaml:"redis"`

	ShardCount    int    `yaml:"shard_count"`
	WindowSize    int    `yaml:"window_size"`
	HashSeed      uint32 `yaml:"hash_seed"`
	QueueCapacity int    `yaml:"queue_capacity"`

	EventsChannel   string `yaml:"events_channel"`
	AlertQueue      string `yaml:"alert_queue"`
	AlertWebhookURL string `yaml:"alert_webhook_url"`
}

// Load reads configuration from the yaml file named by GRIDWATCH_CONFIG
// (if set) over env-var and built-in defaults, then validates it.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		ShardCount:      getenvIntDefault("SHARD_COUNT", 2),
		WindowSize:      getenvIntDefault("WINDOW_SIZE", 6),
		HashSeed:        uint32(getenvIntDefault("HASH_SEED", 0)),
		QueueCapacity:   getenvIntDefault("SHARD_QUEUE_CAPACITY", 1024),
		EventsChannel:   getenvDefault("DIRECTORY_EVENTS_CHANNEL", "directory.sync"),
		AlertQueue:      getenvDefault("ALERT_QUEUE", "notification.queue"),
		AlertWebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
		Redis: Redis{
			Addr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getenvIntDefault("REDIS_DB", 0),
		},
	}

	if path := os.Getenv("GRIDWATCH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects topologies that cannot run.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if c.ShardCount < 1 {
		return fmt.Errorf("config: shard_count must be >= 1, got %d", c.ShardCount)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("config: window_size must be >= 1, got %d", c.WindowSize)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("config: queue_capacity must be >= 1, got %d", c.QueueCapacity)
	}
	if c.Redis.Addr == "" {
		return errors.New("config: redis addr is required")
	}
	if c.EventsChannel == "" {
		return errors.New("config: events_channel is required")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
