package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glizzus/lavanode/internal/config"
	"github.com/glizzus/lavanode/internal/datalayer"
	"github.com/glizzus/lavanode/internal/generator"
	"github.com/glizzus/lavanode/internal/repository"
	"github.com/glizzus/lavanode/internal/schedule"
	"github.com/glizzus/lavanode/internal/worker"
	"github.com/redis/go-redis/v9"
)

var dryRun = flag.Bool("dry-run", false, "Do not use Postgres, just print events to the terminal")

func runWorkerForever() error {
	flag.Parse()
	slog.SetLogLoggerLevel(slog.LevelDebug)
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load redis config: %w", err)
	}
	scheduleConfig, err := config.NewScheduleConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load schedule config: %w", err)
	}
	if err := schedule.ValidateCron(scheduleConfig.StatsSnapshotCron); err != nil {
		return fmt.Errorf("invalid STATS_SNAPSHOT_CRON: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisConfig.Addr,
		Password: redisConfig.Password,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	consumer, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to get hostname: %w", err)
	}

	var eventHandler worker.EventHandler = &worker.PrintingEventHandler{}
	if !*dryRun {
		pool, err := datalayer.NewPostgresPoolFromEnv(ctx)
		if err != nil {
			return fmt.Errorf("failed to create postgres pool: %w", err)
		}
		defer pool.Close()
		if err := datalayer.MigratePostgres(pool); err != nil {
			return fmt.Errorf("failed to migrate postgres: %w", err)
		}

		recorder := worker.NewHistoryRecorder(
			repository.NewPostgresPlayHistoryRepository(pool, &generator.UUIDV4Generator{}),
			repository.NewPostgresStatsRepository(pool),
		)
		eventHandler = recorder

		snapshot := func(ctx context.Context) {
			if err := recorder.Snapshot(ctx); err != nil {
				slog.Error("failed to snapshot node stats", slog.Any("error", err))
			}
		}
		// The node reports stats about once a minute.
		schedule.RunAt(ctx, time.Now().Add(scheduleConfig.InitialSnapshotDelay), snapshot)
		go func() {
			err := schedule.Every(ctx, scheduleConfig.StatsSnapshotCron, snapshot)
			if err != nil {
				slog.Error("Stats snapshots stopped", slog.Any("error", err))
			}
		}()
	}

	receiver, err := worker.NewRedisEventReceiver(ctx, rdb, redisConfig.EventStream, consumer)
	if err != nil {
		return fmt.Errorf("failed to join event stream: %w", err)
	}

	slog.Info("Worker started", "stream", redisConfig.EventStream, "consumer", consumer, "dryRun", *dryRun)
	for {
		records, err := receiver.ReceiveEvents(ctx)
		if ctx.Err() != nil {
			slog.Info("Shutting down")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to receive events: %w", err)
		}
		if len(records) == 0 {
			continue
		}

		// Records that fail stay pending in the consumer group.
		if err := eventHandler.HandleEvents(ctx, records...); err != nil {
			if !errors.Is(err, context.Canceled) {
				slog.Error("failed to record events", "count", len(records), slog.Any("error", err))
			}
			continue
		}
		if err := receiver.Ack(ctx, records...); err != nil {
			slog.Error("failed to ack events", "count", len(records), slog.Any("error", err))
		}
	}
}

func main() {
	if err := runWorkerForever(); err != nil {
		slog.Error("Worker encountered an error", slog.Any("error", err))
		os.Exit(1)
	}
}
