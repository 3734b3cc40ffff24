package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type LavalinkConfig struct {
	Host     string `env:"LAVALINK_HOST, required"`
	Port     int    `env:"LAVALINK_PORT, default=2333"`
	Password string `env:"LAVALINK_PASSWORD, required"`
	Secure   bool   `env:"LAVALINK_SECURE"`

	// ResumeKey lets the node keep players alive across reconnects.
	// When empty and ResumeGenerate is set a random key is used.
	ResumeKey      string        `env:"LAVALINK_RESUME_KEY"`
	ResumeGenerate bool          `env:"LAVALINK_RESUME_GENERATE, default=true"`
	ResumeTimeout  time.Duration `env:"LAVALINK_RESUME_TIMEOUT, default=60s"`

	HandshakeTimeout      time.Duration `env:"LAVALINK_HANDSHAKE_TIMEOUT, default=10s"`
	WebSocketCloseTimeout time.Duration `env:"LAVALINK_WEBSOCKET_CLOSE_TIMEOUT, default=30s"`

	ReconnectInitialInterval time.Duration `env:"LAVALINK_RECONNECT_INITIAL_INTERVAL, default=500ms"`
	ReconnectMaxInterval     time.Duration `env:"LAVALINK_RECONNECT_MAX_INTERVAL, default=30s"`
	// ReconnectMaxElapsed bounds the whole reconnect attempt. Zero retries forever.
	ReconnectMaxElapsed time.Duration `env:"LAVALINK_RECONNECT_MAX_ELAPSED, default=5m"`
}

func NewLavalinkConfigFromEnv() (*LavalinkConfig, error) {
	var cfg LavalinkConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Host == "" || cfg.Password == "" {
		return nil, fmt.Errorf("LAVALINK_HOST and LAVALINK_PASSWORD are required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("LAVALINK_PORT must be between 1 and 65535, got %d", cfg.Port)
	}
	return &cfg, nil
}

// SocketURL is the control-plane websocket endpoint of the node.
func (c *LavalinkConfig) SocketURL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/", scheme, c.Host, c.Port)
}

// RESTURL is the base address of the node's HTTP API.
func (c *LavalinkConfig) RESTURL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}
