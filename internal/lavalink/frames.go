package lavalink

import (
	"time"
)

// Outbound ops.
const (
	opPlay              = "play"
	opStop              = "stop"
	opPause             = "pause"
	opSeek              = "seek"
	opVolume            = "volume"
	opEqualizer         = "equalizer"
	opVoiceUpdate       = "voiceUpdate"
	opDestroy           = "destroy"
	opConfigureResuming = "configureResuming"
)

// Inbound ops and event types.
const (
	opPlayerUpdate = "playerUpdate"
	opStats        = "stats"
	opEvent        = "event"

	eventTrackStart      = "TrackStartEvent"
	eventTrackEnd        = "TrackEndEvent"
	eventTrackStuck      = "TrackStuckEvent"
	eventTrackException  = "TrackExceptionEvent"
	eventWebSocketClosed = "WebSocketClosedEvent"
)

// outbound is implemented by every frame the node can be sent.
type outbound interface {
	opName() string
}

type opFrame struct {
	Op string `json:"op"`
}

func (f opFrame) opName() string { return f.Op }

type guildFrame struct {
	opFrame
	GuildID string `json:"guildId"`
}

func newGuildFrame(op, guildID string) guildFrame {
	return guildFrame{opFrame: opFrame{Op: op}, GuildID: guildID}
}

type playFrame struct {
	guildFrame
	Track     string `json:"track"`
	StartTime int64  `json:"startTime,omitempty"`
	EndTime   int64  `json:"endTime,omitempty"`
	NoReplace bool   `json:"noReplace,omitempty"`
}

type pauseFrame struct {
	guildFrame
	Pause bool `json:"pause"`
}

type seekFrame struct {
	guildFrame
	Position int64 `json:"position"`
}

type volumeFrame struct {
	guildFrame
	Volume int `json:"volume"`
}

type equalizerFrame struct {
	guildFrame
	Bands []Band `json:"bands"`
}

type voiceServerPayload struct {
	Token    string `json:"token"`
	GuildID  string `json:"guild_id"`
	Endpoint string `json:"endpoint"`
}

type voiceUpdateFrame struct {
	guildFrame
	SessionID string             `json:"sessionId"`
	Event     voiceServerPayload `json:"event"`
}

func newVoiceUpdateFrame(state VoiceState, server VoiceServer) voiceUpdateFrame {
	return voiceUpdateFrame{
		guildFrame: newGuildFrame(opVoiceUpdate, server.GuildID),
		SessionID:  state.SessionID,
		Event: voiceServerPayload{
			Token:    server.Token,
			GuildID:  server.GuildID,
			Endpoint: server.Endpoint,
		},
	}
}

type configureResumingFrame struct {
	opFrame
	Key     string `json:"key"`
	Timeout int64  `json:"timeout"`
}

func newConfigureResumingFrame(key string, timeout time.Duration) configureResumingFrame {
	return configureResumingFrame{
		opFrame: opFrame{Op: opConfigureResuming},
		Key:     key,
		Timeout: int64(timeout / time.Second),
	}
}

// inboundFrame is the union of every field the node sends. Which fields are
// meaningful depends on Op and Type.
type inboundFrame struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
	Type    string `json:"type"`

	State *playerState `json:"state"`

	Track       string            `json:"track"`
	Reason      string            `json:"reason"`
	ThresholdMs int64             `json:"thresholdMs"`
	Error       string            `json:"error"`
	Exception   *exceptionPayload `json:"exception"`

	Code     int  `json:"code"`
	ByRemote bool `json:"byRemote"`
}

type playerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
}

type exceptionPayload struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}
