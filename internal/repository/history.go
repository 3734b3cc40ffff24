package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glizzus/lavanode/internal/generator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Play is one track played in a guild.
type Play struct {
	ID         string
	GuildID    string
	Identifier string
	Title      string
	Author     string
	Length     time.Duration
	URI        string
	StartedAt  time.Time
	// EndedAt is zero while the track is playing or when its end was never seen.
	EndedAt   time.Time
	EndReason string
}

type PlayHistory interface {
	RecordStart(ctx context.Context, play Play) (string, error)
	RecordEnd(ctx context.Context, guildID, identifier string, endedAt time.Time, reason string) error
	Recent(ctx context.Context, guildID string, limit int) ([]Play, error)
}

type PostgresPlayHistoryRepository struct {
	db  *pgxpool.Pool
	ids generator.Generator[string]
}

func NewPostgresPlayHistoryRepository(db *pgxpool.Pool, ids generator.Generator[string]) *PostgresPlayHistoryRepository {
	return &PostgresPlayHistoryRepository{db: db, ids: ids}
}

// RecordStart inserts play and returns its id. A play with an id already set
// is upserted.
func (r *PostgresPlayHistoryRepository) RecordStart(ctx context.Context, play Play) (string, error) {
	const query = `
	INSERT INTO play_history (id, guild_id, identifier, title, author, length_ms, uri, started_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		author = EXCLUDED.author,
		length_ms = EXCLUDED.length_ms,
		uri = EXCLUDED.uri
	`

	if play.ID == "" {
		id, err := r.ids.Next()
		if err != nil {
			return "", fmt.Errorf("failed to generate play id: %w", err)
		}
		play.ID = id
	}

	var uri *string
	if play.URI != "" {
		uri = &play.URI
	}
	_, err := r.db.Exec(ctx, query,
		play.ID,
		play.GuildID,
		play.Identifier,
		play.Title,
		play.Author,
		play.Length.Milliseconds(),
		uri,
		play.StartedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record play of %s in guild %s: %w", play.Identifier, play.GuildID, err)
	}
	return play.ID, nil
}

// ErrNoOpenPlay is returned by RecordEnd when no unfinished play matches.
var ErrNoOpenPlay = errors.New("no unfinished play matches")

// RecordEnd closes the most recent unfinished play of identifier in the guild.
func (r *PostgresPlayHistoryRepository) RecordEnd(ctx context.Context, guildID, identifier string, endedAt time.Time, reason string) error {
	const query = `
	UPDATE play_history SET ended_at = $3, end_reason = $4
	WHERE id = (
		SELECT id FROM play_history
		WHERE guild_id = $1 AND identifier = $2 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	)
	`

	tag, err := r.db.Exec(ctx, query, guildID, identifier, endedAt.UTC(), reason)
	if err != nil {
		return fmt.Errorf("failed to record end of %s in guild %s: %w", identifier, guildID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoOpenPlay
	}
	return nil
}

// Recent lists the guild's plays, newest first.
func (r *PostgresPlayHistoryRepository) Recent(ctx context.Context, guildID string, limit int) ([]Play, error) {
	const query = `
	SELECT id, guild_id, identifier, title, author, length_ms, uri, started_at, ended_at, end_reason
	FROM play_history
	WHERE guild_id = $1
	ORDER BY started_at DESC
	LIMIT $2
	`

	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx, query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query play history: %w", err)
	}

	plays, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Play, error) {
		var (
			p         Play
			lengthMs  int64
			uri       *string
			endedAt   *time.Time
			endReason *string
		)
		if err := row.Scan(&p.ID, &p.GuildID, &p.Identifier, &p.Title, &p.Author, &lengthMs, &uri, &p.StartedAt, &endedAt, &endReason); err != nil {
			return Play{}, err
		}
		p.Length = time.Duration(lengthMs) * time.Millisecond
		if uri != nil {
			p.URI = *uri
		}
		if endedAt != nil {
			p.EndedAt = *endedAt
		}
		if endReason != nil {
			p.EndReason = *endReason
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan play history: %w", err)
	}
	return plays, nil
}

var _ PlayHistory = (*PostgresPlayHistoryRepository)(nil)
