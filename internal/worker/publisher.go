package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/glizzus/lavanode/internal/lavalink"
	"github.com/glizzus/lavanode/internal/metrics"
)

// PublishedKinds are the node events a Publisher forwards by default.
var PublishedKinds = []lavalink.EventKind{
	lavalink.EventTrackStarted,
	lavalink.EventTrackFinished,
	lavalink.EventTrackStuck,
	lavalink.EventTrackException,
	lavalink.EventWebSocketClosed,
	lavalink.EventChannelDisconnected,
	lavalink.EventStatsReceived,
	lavalink.EventNodeConnected,
	lavalink.EventNodeDisconnected,
}

// Publisher batches node events into an EventHandler off the socket read
// loop. When the buffer is full events are dropped rather than stalling the
// node.
type Publisher struct {
	handler  EventHandler
	queue    chan EventRecord
	batch    int
	interval time.Duration

	unsubscribe func()
	wg          sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(handler EventHandler, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Publisher{
		handler:  handler,
		queue:    make(chan EventRecord, buffer),
		batch:    64,
		interval: time.Second,
	}
}

// Subscribe forwards kinds from events, or PublishedKinds when none are given.
func (p *Publisher) Subscribe(events *lavalink.EventRegistry, kinds ...lavalink.EventKind) {
	if len(kinds) == 0 {
		kinds = PublishedKinds
	}
	p.unsubscribe = events.SubscribeAll(p.Enqueue, kinds...)
}

// Enqueue is a lavalink.Handler.
func (p *Publisher) Enqueue(e lavalink.Event) {
	rec, ok := RecordFromEvent(e, time.Now())
	if !ok {
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- rec:
	default:
		metrics.EventsDropped.Inc()
		slog.Warn("Event buffer full, dropping event", "kind", rec.Kind, "guildID", rec.GuildID)
	}
}

// Start flushes batches in the background until ctx is done or Close is
// called. What is buffered at that point is flushed before it stops.
func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
}

func (p *Publisher) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	pending := make([]EventRecord, 0, p.batch)
	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := p.handler.HandleEvents(ctx, pending...); err != nil {
			slog.Error("failed to publish node events", "count", len(pending), slog.Any("error", err))
		} else {
			metrics.EventsPublished.Add(float64(len(pending)))
		}
		pending = pending[:0]
	}

	for {
		select {
		case rec, ok := <-p.queue:
			if !ok {
				flush(context.Background())
				return
			}
			pending = append(pending, rec)
			if len(pending) >= p.batch {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
		drain:
			for {
				select {
				case rec, ok := <-p.queue:
					if !ok {
						break drain
					}
					pending = append(pending, rec)
				default:
					break drain
				}
			}
			flush(context.Background())
			return
		}
	}
}

// Close stops accepting events and waits for the buffered ones to flush.
func (p *Publisher) Close() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
