package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glizzus/lavanode/internal/config"
	"github.com/glizzus/lavanode/internal/datalayer"
	"github.com/glizzus/lavanode/internal/generator"
	"github.com/glizzus/lavanode/internal/handler"
	"github.com/glizzus/lavanode/internal/lavalink"
	"github.com/glizzus/lavanode/internal/metrics"
	"github.com/glizzus/lavanode/internal/repository"
	"github.com/glizzus/lavanode/internal/rest"
	"github.com/glizzus/lavanode/internal/voice"
	"github.com/glizzus/lavanode/internal/worker"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func resumeKey(cfg *config.LavalinkConfig) (string, error) {
	if cfg.ResumeKey != "" || !cfg.ResumeGenerate {
		return cfg.ResumeKey, nil
	}
	gen := generator.PrefixedGenerator{Prefix: "lavanode-", Inner: &generator.UUIDV4Generator{}}
	return gen.Next()
}

// connectNode retries the first connection until it succeeds or ctx is done.
// Open returns before Discord sends READY, so ErrNotReady is retried too.
func connectNode(ctx context.Context, node *lavalink.Node) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	return backoff.RetryNotify(
		func() error {
			err := node.Connect(ctx)
			if errors.Is(err, lavalink.ErrAlreadyConnected) {
				return nil
			}
			if errors.Is(err, lavalink.ErrNodeStopped) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(b, ctx),
		func(err error, wait time.Duration) {
			slog.Warn("Failed to connect to node, retrying", "wait", wait, slog.Any("error", err))
		},
	)
}

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load discord config: %w", err)
	}
	lavalinkConfig, err := config.NewLavalinkConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load lavalink config: %w", err)
	}
	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load redis config: %w", err)
	}
	scheduleConfig, err := config.NewScheduleConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load schedule config: %w", err)
	}

	pool, err := datalayer.NewPostgresPoolFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}
	defer pool.Close()
	if err := datalayer.MigratePostgres(pool); err != nil {
		return fmt.Errorf("failed to migrate postgres: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisConfig.Addr,
		Password: redisConfig.Password,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	streamHandler, err := worker.NewRedisEventHandler(ctx, rdb, redisConfig.EventStream, redisConfig.EventStreamMaxLen)
	if err != nil {
		return fmt.Errorf("failed to prepare event stream: %w", err)
	}

	session, err := handler.NewSession(discordConfig.Token, handler.Handlers{
		Ready: handler.ReadyLog,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	key, err := resumeKey(lavalinkConfig)
	if err != nil {
		return fmt.Errorf("failed to generate resume key: %w", err)
	}
	node := lavalink.NewNode(&lavalink.DiscordGateway{Session: session}, lavalink.OptionsFromConfig(lavalinkConfig, key))
	detach := node.Attach(session)
	defer detach()

	publisher := worker.NewPublisher(streamHandler, 1024)
	publisher.Subscribe(node.Events())
	// Stopping the node publishes its final events, so the publisher outlives ctx.
	publisher.Start(context.Background())
	defer publisher.Close()

	players := handler.NodePlayers{Node: node}
	music := &handler.Music{
		Players: players,
		Loader:  rest.NewClient(lavalinkConfig.RESTURL(), lavalinkConfig.Password),
		Voice:   voice.NewLocator(session),
		History: repository.NewPostgresPlayHistoryRepository(pool, &generator.UUIDV4Generator{}),
		Timeout: lavalinkConfig.HandshakeTimeout + 5*time.Second,
	}
	session.AddHandler(handler.MakeInteractionCreateHandler(
		handler.NewInteractionHandler(players, music, nil),
	))

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	if err := handler.EstablishCommands(session, discordConfig.CommandGuildID()); err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}

	go func() {
		if err := metrics.Serve(scheduleConfig.MetricsAddr, "/metrics"); err != nil {
			slog.Error("Metrics server stopped", slog.Any("error", err))
		}
	}()

	if err := connectNode(ctx, node); err != nil {
		return fmt.Errorf("failed to connect to node: %w", err)
	}
	slog.Info("Connected to node", "url", lavalinkConfig.SocketURL(), "resumeKey", key != "")

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case <-node.Done():
		runErr = fmt.Errorf("lost connection to node")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := node.Stop(stopCtx); err != nil {
		slog.Warn("failed to stop node cleanly", slog.Any("error", err))
	}
	return runErr
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}
