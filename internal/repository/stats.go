package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glizzus/lavanode/internal/lavalink"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNoSnapshot = errors.New("no stats snapshot recorded")

type StatsSnapshot struct {
	TakenAt time.Time
	Stats   lavalink.Stats
}

type StatsSnapshots interface {
	Save(ctx context.Context, snapshot StatsSnapshot) error
	Latest(ctx context.Context) (StatsSnapshot, error)
}

type PostgresStatsRepository struct {
	db *pgxpool.Pool
}

func NewPostgresStatsRepository(db *pgxpool.Pool) *PostgresStatsRepository {
	return &PostgresStatsRepository{db: db}
}

func (r *PostgresStatsRepository) Save(ctx context.Context, snapshot StatsSnapshot) error {
	const query = `
	INSERT INTO stats_snapshot (
		taken_at, players, playing_players, uptime_ms,
		memory_free, memory_used, memory_allocated, memory_reservable,
		cpu_cores, system_load, lavalink_load,
		frames_sent, frames_nulled, frames_deficit
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	s := snapshot.Stats
	var sent, nulled, deficit *int
	if s.FrameStats != nil {
		sent, nulled, deficit = &s.FrameStats.Sent, &s.FrameStats.Nulled, &s.FrameStats.Deficit
	}
	_, err := r.db.Exec(ctx, query,
		snapshot.TakenAt.UTC(), s.Players, s.PlayingPlayers, s.UptimeMs,
		s.Memory.Free, s.Memory.Used, s.Memory.Allocated, s.Memory.Reservable,
		s.CPU.Cores, s.CPU.SystemLoad, s.CPU.LavalinkLoad,
		sent, nulled, deficit,
	)
	if err != nil {
		return fmt.Errorf("failed to save stats snapshot: %w", err)
	}
	return nil
}

func (r *PostgresStatsRepository) Latest(ctx context.Context) (StatsSnapshot, error) {
	const query = `
	SELECT
		taken_at, players, playing_players, uptime_ms,
		memory_free, memory_used, memory_allocated, memory_reservable,
		cpu_cores, system_load, lavalink_load,
		frames_sent, frames_nulled, frames_deficit
	FROM stats_snapshot
	ORDER BY taken_at DESC
	LIMIT 1
	`

	var (
		snap                  StatsSnapshot
		sent, nulled, deficit *int
	)
	s := &snap.Stats
	err := r.db.QueryRow(ctx, query).Scan(
		&snap.TakenAt, &s.Players, &s.PlayingPlayers, &s.UptimeMs,
		&s.Memory.Free, &s.Memory.Used, &s.Memory.Allocated, &s.Memory.Reservable,
		&s.CPU.Cores, &s.CPU.SystemLoad, &s.CPU.LavalinkLoad,
		&sent, &nulled, &deficit,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return StatsSnapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("failed to query latest stats snapshot: %w", err)
	}
	if sent != nil {
		s.FrameStats = &lavalink.FrameStats{Sent: *sent, Nulled: derefInt(nulled), Deficit: derefInt(deficit)}
	}
	s.UpdatedAt = snap.TakenAt
	return snap, nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

var _ StatsSnapshots = (*PostgresStatsRepository)(nil)
