package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glizzus/lavanode/internal/lavalink"
	"github.com/glizzus/lavanode/internal/repository"
)

// HistoryRecorder writes play history from event records and keeps the most
// recent node stats for periodic snapshots.
type HistoryRecorder struct {
	plays repository.PlayHistory
	stats repository.StatsSnapshots

	mu     sync.Mutex
	latest *repository.StatsSnapshot
}

func NewHistoryRecorder(plays repository.PlayHistory, stats repository.StatsSnapshots) *HistoryRecorder {
	return &HistoryRecorder{plays: plays, stats: stats}
}

func (h *HistoryRecorder) HandleEvents(ctx context.Context, records ...EventRecord) error {
	var errs []error
	for _, rec := range records {
		if err := h.handle(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *HistoryRecorder) handle(ctx context.Context, rec EventRecord) error {
	switch rec.Kind {
	case lavalink.EventTrackStarted.String():
		_, err := h.plays.RecordStart(ctx, repository.Play{
			GuildID:    rec.GuildID,
			Identifier: rec.Fields["identifier"],
			Title:      rec.Fields["title"],
			Author:     rec.Fields["author"],
			Length:     time.Duration(rec.Int("lengthMs")) * time.Millisecond,
			URI:        rec.Fields["uri"],
			StartedAt:  rec.At,
		})
		return err
	case lavalink.EventTrackFinished.String():
		err := h.plays.RecordEnd(ctx, rec.GuildID, rec.Fields["identifier"], rec.At, rec.Fields["reason"])
		if errors.Is(err, repository.ErrNoOpenPlay) {
			slog.Debug("Track end without a recorded start", "guildID", rec.GuildID, "identifier", rec.Fields["identifier"])
			return nil
		}
		return err
	case lavalink.EventStatsReceived.String():
		snap := repository.StatsSnapshot{
			TakenAt: rec.At,
			Stats: lavalink.Stats{
				Players:        int(rec.Int("players")),
				PlayingPlayers: int(rec.Int("playingPlayers")),
				UptimeMs:       rec.Int("uptimeMs"),
				Memory:         lavalink.MemoryStats{Used: rec.Int("memoryUsed")},
				CPU: lavalink.CPUStats{
					Cores:        int(rec.Int("cpuCores")),
					SystemLoad:   rec.Float("systemLoad"),
					LavalinkLoad: rec.Float("lavalinkLoad"),
				},
			},
		}
		h.mu.Lock()
		h.latest = &snap
		h.mu.Unlock()
	}
	return nil
}

// Snapshot saves the stats last received since the previous snapshot. It does
// nothing when none arrived.
func (h *HistoryRecorder) Snapshot(ctx context.Context) error {
	h.mu.Lock()
	snap := h.latest
	h.latest = nil
	h.mu.Unlock()

	if snap == nil {
		return nil
	}
	if err := h.stats.Save(ctx, *snap); err != nil {
		return fmt.Errorf("failed to snapshot node stats: %w", err)
	}
	return nil
}

var _ EventHandler = (*HistoryRecorder)(nil)
