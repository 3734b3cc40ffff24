package handler

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/lavanode/internal/lavalink"
	"github.com/glizzus/lavanode/internal/repository"
	"github.com/glizzus/lavanode/internal/rest"
	"github.com/glizzus/lavanode/internal/trackcodec"
)

// Player controls playback in one guild.
type Player interface {
	Play(ctx context.Context, track trackcodec.Track) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Seek(ctx context.Context, position time.Duration) error
	SetVolume(ctx context.Context, volume int) error
	Disconnect(ctx context.Context) error

	Track() (trackcodec.Track, bool)
	EstimatedPosition(now time.Time) time.Duration
	Paused() bool
	Volume() int
}

var _ Player = (*lavalink.GuildSession)(nil)

type NodeStatus interface {
	State() lavalink.State
	Stats() lavalink.Stats
}

type Players interface {
	NodeStatus
	Join(ctx context.Context, ch *discordgo.Channel) (Player, error)
	Player(guildID string) (Player, bool)
}

// NodePlayers serves Players from a node's guild sessions.
type NodePlayers struct {
	*lavalink.Node
}

func (p NodePlayers) Join(ctx context.Context, ch *discordgo.Channel) (Player, error) {
	sess, err := p.ConnectGuild(ctx, ch)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (p NodePlayers) Player(guildID string) (Player, bool) {
	sess, ok := p.Session(guildID)
	if !ok {
		return nil, false
	}
	return sess, true
}

var _ Players = NodePlayers{}

type TrackLoader interface {
	LoadTracks(ctx context.Context, identifier string) (*rest.LoadResult, error)
}

var _ TrackLoader = (*rest.Client)(nil)

type ChannelLocator interface {
	UserChannel(guildID, userID string) (*discordgo.Channel, error)
	BusiestChannel(guildID string) (*discordgo.Channel, error)
}

type HistoryReader interface {
	Recent(ctx context.Context, guildID string, limit int) ([]repository.Play, error)
}
