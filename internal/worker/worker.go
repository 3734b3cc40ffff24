// Package worker moves node events out of the bot process. The bot appends
// them to a Redis stream and the worker process reads them back to record
// play history and node statistics.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultStream = "lavalink_events"
	consumerGroup = "lavalink_history_group"
)

type EventHandler interface {
	HandleEvents(ctx context.Context, records ...EventRecord) error
}

type PrintingEventHandler struct{}

func (h *PrintingEventHandler) HandleEvents(ctx context.Context, records ...EventRecord) error {
	for _, rec := range records {
		slog.InfoContext(
			ctx,
			"Node event",
			slog.String("kind", rec.Kind),
			slog.String("guildID", rec.GuildID),
			slog.String("at", rec.At.Format("2006-01-02 15:04:05")),
			slog.Any("fields", rec.Fields),
		)
	}
	return nil
}

var _ EventHandler = (*PrintingEventHandler)(nil)

// RedisEventHandler appends records to a stream.
type RedisEventHandler struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisEventHandler makes sure the stream and its consumer group exist.
// maxLen trims the stream approximately; zero keeps every entry.
func NewRedisEventHandler(ctx context.Context, client redis.Cmdable, stream string, maxLen int64) (*RedisEventHandler, error) {
	if stream == "" {
		stream = DefaultStream
	}
	if err := ensureGroup(ctx, client, stream); err != nil {
		return nil, err
	}
	return &RedisEventHandler{client: client, stream: stream, maxLen: maxLen}, nil
}

func ensureGroup(ctx context.Context, client redis.Cmdable, stream string) error {
	err := client.XGroupCreateMkStream(ctx, stream, consumerGroup, "0").Err()
	if err != nil && !errors.Is(err, redis.Nil) && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group on %s: %w", stream, err)
	}
	return nil
}

func (h *RedisEventHandler) HandleEvents(ctx context.Context, records ...EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := h.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, rec := range records {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: h.stream,
				MaxLen: h.maxLen,
				Approx: h.maxLen > 0,
				Values: rec.Values(),
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append %d events to %s: %w", len(records), h.stream, err)
	}
	return nil
}

var _ EventHandler = (*RedisEventHandler)(nil)

// RedisEventReceiver reads records back as a member of the consumer group.
type RedisEventReceiver struct {
	client   redis.Cmdable
	stream   string
	consumer string
	block    time.Duration
	count    int64
}

func NewRedisEventReceiver(ctx context.Context, client redis.Cmdable, stream, consumer string) (*RedisEventReceiver, error) {
	if stream == "" {
		stream = DefaultStream
	}
	if err := ensureGroup(ctx, client, stream); err != nil {
		return nil, err
	}
	return &RedisEventReceiver{
		client:   client,
		stream:   stream,
		consumer: consumer,
		block:    5 * time.Second,
		count:    100,
	}, nil
}

// ReceiveEvents blocks until records arrive or the block interval passes, in
// which case it returns no records and no error.
func (r *RedisEventReceiver) ReceiveEvents(ctx context.Context) ([]EventRecord, error) {
	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: r.consumer,
		Streams:  []string{r.stream, ">"},
		Count:    r.count,
		Block:    r.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from %s: %w", r.stream, err)
	}

	var records []EventRecord
	for _, s := range streams {
		for _, msg := range s.Messages {
			records = append(records, RecordFromValues(msg.ID, msg.Values))
		}
	}
	return records, nil
}

// Ack marks records as processed.
func (r *RedisEventReceiver) Ack(ctx context.Context, records ...EventRecord) error {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.ID != "" {
			ids = append(ids, rec.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, r.stream, consumerGroup, ids...).Err(); err != nil {
		return fmt.Errorf("failed to ack %d events: %w", len(ids), err)
	}
	return nil
}
