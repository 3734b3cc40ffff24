package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, required"`
	Password string `env:"REDIS_PASSWORD"`

	// EventStream is the stream node events are appended to.
	EventStream string `env:"REDIS_EVENT_STREAM, default=lavalink_events"`
	// EventStreamMaxLen caps the stream length. Zero disables trimming.
	EventStreamMaxLen int64 `env:"REDIS_EVENT_STREAM_MAXLEN, default=10000"`
}

func NewRedisConfigFromEnv() (*RedisConfig, error) {
	var cfg RedisConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required")
	}
	return &cfg, nil
}
