package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type ScheduleConfig struct {
	// StatsSnapshotCron controls how often node statistics are persisted.
	StatsSnapshotCron    string        `env:"STATS_SNAPSHOT_CRON, default=*/5 * * * *"`
	// InitialSnapshotDelay is when the worker takes its first snapshot,
	// ahead of the cron schedule.
	InitialSnapshotDelay time.Duration `env:"STATS_INITIAL_SNAPSHOT_DELAY, default=90s"`
	MetricsAddr          string        `env:"METRICS_ADDR, default=:9090"`
}

func NewScheduleConfigFromEnv() (*ScheduleConfig, error) {
	var cfg ScheduleConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
