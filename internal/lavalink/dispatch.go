package lavalink

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/glizzus/lavanode/internal/metrics"
	"github.com/glizzus/lavanode/internal/trackcodec"
)

// Dispatch routes one inbound control-plane frame. Malformed frames are
// logged and dropped; unknown ops and event types are ignored.
func (n *Node) Dispatch(data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		n.drop("invalid_json", "could not parse frame", slog.Any("error", err))
		return
	}
	if frame.Op == "" {
		n.drop("missing_op", "frame has no op")
		return
	}
	metrics.FramesReceived.WithLabelValues(frame.Op).Inc()

	switch frame.Op {
	case opPlayerUpdate:
		n.dispatchPlayerUpdate(&frame)
	case opStats:
		n.dispatchStats(data)
	case opEvent:
		n.dispatchEvent(&frame)
	default:
		slog.Debug("Ignoring unknown op", "op", frame.Op)
	}
}

func (n *Node) drop(reason, msg string, args ...any) {
	metrics.FramesDropped.WithLabelValues(reason).Inc()
	slog.Warn("Dropping frame: "+msg, args...)
}

func (n *Node) dispatchPlayerUpdate(frame *inboundFrame) {
	if frame.GuildID == "" || frame.State == nil {
		n.drop("missing_field", "playerUpdate without guildId or state")
		return
	}
	sess, ok := n.sessions.load(frame.GuildID)
	if !ok {
		slog.Debug("playerUpdate for unknown guild", "guildID", frame.GuildID)
		return
	}
	sess.handlePlayerUpdate(*frame.State)
}

func (n *Node) dispatchStats(data []byte) {
	var update Stats
	if err := json.Unmarshal(data, &update); err != nil {
		n.drop("invalid_json", "could not parse stats", slog.Any("error", err))
		return
	}

	n.statsMu.Lock()
	n.stats.merge(update, time.Now())
	snapshot := n.stats.clone()
	n.statsMu.Unlock()

	metrics.NodePlayers.Set(float64(snapshot.Players))
	metrics.NodePlayingPlayers.Set(float64(snapshot.PlayingPlayers))
	n.events.Publish(StatsReceived{Stats: snapshot})
}

func (n *Node) dispatchEvent(frame *inboundFrame) {
	if frame.GuildID == "" || frame.Type == "" {
		n.drop("missing_field", "event without guildId or type")
		return
	}

	var needsTrack bool
	switch frame.Type {
	case eventTrackStart, eventTrackEnd, eventTrackStuck, eventTrackException:
		needsTrack = true
	case eventWebSocketClosed:
	default:
		slog.Debug("Ignoring unknown event type", "type", frame.Type)
		return
	}

	sess, ok := n.sessions.load(frame.GuildID)
	if !ok {
		slog.Debug("Event for unknown guild", "guildID", frame.GuildID, "type", frame.Type)
		return
	}

	var track trackcodec.Track
	if needsTrack {
		if frame.Track == "" {
			n.drop("missing_field", "track event without track", "type", frame.Type)
			return
		}
		var err error
		track, err = trackcodec.Decode(frame.Track)
		if err != nil {
			n.drop("bad_track", "could not decode track", "type", frame.Type, slog.Any("error", err))
			return
		}
	}

	switch frame.Type {
	case eventTrackStart:
		sess.handleTrackStart(track)
	case eventTrackEnd:
		sess.handleTrackEnd(track, ParseEndReason(frame.Reason))
	case eventTrackStuck:
		sess.handleTrackStuck(track, time.Duration(frame.ThresholdMs)*time.Millisecond)
	case eventTrackException:
		msg, severity := frame.Error, ""
		if frame.Exception != nil {
			severity = frame.Exception.Severity
			if msg == "" {
				msg = frame.Exception.Message
			}
		}
		sess.handleTrackException(track, msg, severity)
	case eventWebSocketClosed:
		sess.handleWebSocketClosed(frame.Code, frame.Reason, frame.ByRemote)
	}
}
