package lavalink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/lavanode/internal/handshake"
	"github.com/glizzus/lavanode/internal/metrics"
)

// ConnectGuild joins ch and opens a player for its guild on the node. If the
// guild already has a session it is returned unchanged.
func (n *Node) ConnectGuild(ctx context.Context, ch *discordgo.Channel) (*GuildSession, error) {
	if n.stopping.Load() {
		return nil, ErrNodeStopped
	}
	if !isVoiceChannel(ch) {
		return nil, ErrInvalidChannel
	}
	if sess, ok := n.sessions.load(ch.GuildID); ok {
		return sess, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The handshake is shared by every caller for the guild, so it runs on
	// the node's context. A caller that gives up does not abort it.
	results := n.connecting.DoChan(ch.GuildID, func() (any, error) {
		if sess, ok := n.sessions.load(ch.GuildID); ok {
			return sess, nil
		}
		return n.connectGuild(n.ctx, ch)
	})
	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*GuildSession), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *Node) connectGuild(ctx context.Context, ch *discordgo.Channel) (*GuildSession, error) {
	guildID := ch.GuildID
	hs := handshake.New[VoiceState, VoiceServer]()
	n.handshakes.store(guildID, hs)
	defer n.handshakes.compareAndDelete(guildID, hs)

	if err := n.gateway.UpdateVoiceState(guildID, ch.ID, false, true); err != nil {
		return nil, fmt.Errorf("failed to request voice state: %w", err)
	}

	state, server, err := hs.AwaitBoth(ctx, n.opts.HandshakeTimeout)
	if err != nil {
		metrics.HandshakeFailures.Inc()
		if lerr := n.gateway.UpdateVoiceState(guildID, "", false, false); lerr != nil {
			slog.Warn("failed to leave voice after handshake failure", "guildID", guildID, slog.Any("error", lerr))
		}
		return nil, fmt.Errorf("voice handshake for guild %s: %w", guildID, err)
	}

	if err := n.send(ctx, newVoiceUpdateFrame(state, server)); err != nil {
		return nil, err
	}

	sess := newGuildSession(state, n, n.gateway)
	n.register(sess)
	if n.stopping.Load() {
		_ = sess.disconnect(context.Background(), disconnectNodeLost)
		return nil, ErrNodeStopped
	}

	slog.Info("Guild session connected", "guildID", guildID, "channelID", state.ChannelID, "endpoint", server.Endpoint)
	return sess, nil
}

func (n *Node) register(sess *GuildSession) {
	unsubscribe := sess.events.SubscribeAll(n.events.Publish, guildEventKinds...)
	sess.onDispose = func() {
		unsubscribe()
		n.sessions.compareAndDelete(sess.guildID, sess)
		metrics.GuildSessions.Set(float64(n.sessions.len()))
	}
	n.sessions.store(sess.guildID, sess)
	metrics.GuildSessions.Set(float64(n.sessions.len()))
}

// HandleVoiceStateUpdate feeds a Discord voice state update to the node.
// Updates for users other than the bot are ignored.
func (n *Node) HandleVoiceStateUpdate(vs *discordgo.VoiceStateUpdate) {
	if vs == nil || vs.VoiceState == nil || vs.UserID != n.gateway.UserID() {
		return
	}
	state := VoiceState{
		GuildID:   vs.GuildID,
		ChannelID: vs.ChannelID,
		UserID:    vs.UserID,
		SessionID: vs.SessionID,
	}

	if hs, ok := n.handshakes.load(state.GuildID); ok && state.ChannelID != "" {
		if err := hs.ResolveState(state); err != nil {
			slog.Debug("Ignoring repeated voice state", "guildID", state.GuildID, slog.Any("error", err))
		}
		return
	}

	sess, ok := n.sessions.load(state.GuildID)
	if !ok {
		return
	}
	if state.ChannelID == "" {
		go n.awaitVacate(sess)
		return
	}
	sess.setVoiceState(state)
}

// HandleVoiceServerUpdate feeds a Discord voice server update to the node.
// Once a guild has a session, later updates are forwarded to the node so it
// can follow a voice region migration.
func (n *Node) HandleVoiceServerUpdate(vsu *discordgo.VoiceServerUpdate) {
	if vsu == nil {
		return
	}
	// Discord sends an empty endpoint while it allocates a new server.
	if vsu.Endpoint == "" {
		slog.Debug("Voice server update without endpoint", "guildID", vsu.GuildID)
		return
	}
	server := VoiceServer{GuildID: vsu.GuildID, Token: vsu.Token, Endpoint: vsu.Endpoint}

	if hs, ok := n.handshakes.load(server.GuildID); ok {
		if err := hs.ResolveServer(server); err != nil {
			slog.Debug("Ignoring repeated voice server", "guildID", server.GuildID, slog.Any("error", err))
		}
		return
	}

	sess, ok := n.sessions.load(server.GuildID)
	if !ok || sess.Disposed() {
		return
	}
	if err := n.send(n.ctx, newVoiceUpdateFrame(sess.VoiceState(), server)); err != nil {
		slog.Warn("failed to forward voice server migration", "guildID", server.GuildID, slog.Any("error", err))
		return
	}
	slog.Info("Forwarded voice server migration", "guildID", server.GuildID, "endpoint", server.Endpoint)
}

// awaitVacate ends a session whose bot was removed from the channel. It
// waits for the node to report its voice websocket closed, or gives up after
// WebSocketCloseTimeout.
func (n *Node) awaitVacate(sess *GuildSession) {
	if sess.Disposed() || !sess.vacating.CompareAndSwap(false, true) {
		return
	}

	timer := time.NewTimer(n.opts.WebSocketCloseTimeout)
	defer timer.Stop()

	select {
	case <-sess.voiceClosed:
	case <-timer.C:
		slog.Debug("No voice websocket close from node, disconnecting anyway", "guildID", sess.guildID)
	case <-n.ctx.Done():
		return
	}

	if err := sess.disconnect(n.ctx, disconnectVacated); err != nil && !errors.Is(err, ErrNotConnected) {
		slog.Warn("failed to disconnect vacated session", "guildID", sess.guildID, slog.Any("error", err))
	}
}

// Attach registers the node's voice handlers on a Discord session. The
// returned function removes them.
func (n *Node) Attach(s *discordgo.Session) (detach func()) {
	removeState := s.AddHandler(func(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		n.HandleVoiceStateUpdate(vs)
	})
	removeServer := s.AddHandler(func(_ *discordgo.Session, vsu *discordgo.VoiceServerUpdate) {
		n.HandleVoiceServerUpdate(vsu)
	})
	return func() {
		removeState()
		removeServer()
	}
}
