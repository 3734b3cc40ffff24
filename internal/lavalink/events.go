package lavalink

import (
	"sync"
	"time"

	"github.com/glizzus/lavanode/internal/trackcodec"
)

type EventKind int

const (
	EventPlayerUpdated EventKind = iota
	EventTrackStarted
	EventTrackFinished
	EventTrackStuck
	EventTrackException
	EventWebSocketClosed
	EventChannelDisconnected
	EventStatsReceived
	EventNodeConnected
	EventNodeDisconnected
	EventSocketError
)

var eventKindNames = map[EventKind]string{
	EventPlayerUpdated:       "player_updated",
	EventTrackStarted:        "track_started",
	EventTrackFinished:       "track_finished",
	EventTrackStuck:          "track_stuck",
	EventTrackException:      "track_exception",
	EventWebSocketClosed:     "websocket_closed",
	EventChannelDisconnected: "channel_disconnected",
	EventStatsReceived:       "stats_received",
	EventNodeConnected:       "node_connected",
	EventNodeDisconnected:    "node_disconnected",
	EventSocketError:         "socket_error",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// guildEventKinds are raised by guild sessions and forwarded to the node.
var guildEventKinds = []EventKind{
	EventPlayerUpdated,
	EventTrackStarted,
	EventTrackFinished,
	EventTrackStuck,
	EventTrackException,
	EventWebSocketClosed,
	EventChannelDisconnected,
}

type Event interface {
	Kind() EventKind
}

// EndReason is why the node stopped playing a track.
type EndReason string

const (
	EndReasonFinished   EndReason = "FINISHED"
	EndReasonLoadFailed EndReason = "LOAD_FAILED"
	EndReasonStopped    EndReason = "STOPPED"
	EndReasonReplaced   EndReason = "REPLACED"
	EndReasonCleanup    EndReason = "CLEANUP"
)

// ParseEndReason maps the node's reason string. Unknown values are CLEANUP.
func ParseEndReason(s string) EndReason {
	switch r := EndReason(s); r {
	case EndReasonFinished, EndReasonLoadFailed, EndReasonStopped, EndReasonReplaced, EndReasonCleanup:
		return r
	default:
		return EndReasonCleanup
	}
}

// MayStartNext reports whether a queue should advance after this reason.
func (r EndReason) MayStartNext() bool {
	return r == EndReasonFinished || r == EndReasonLoadFailed
}

type PlayerUpdated struct {
	GuildID   string
	Position  time.Duration
	Timestamp time.Time
}

type TrackStarted struct {
	GuildID string
	Track   trackcodec.Track
}

type TrackFinished struct {
	GuildID string
	Track   trackcodec.Track
	Reason  EndReason
}

type TrackStuck struct {
	GuildID   string
	Track     trackcodec.Track
	Threshold time.Duration
}

type TrackException struct {
	GuildID  string
	Track    trackcodec.Track
	Error    string
	Severity string
}

// WebSocketClosed is the node reporting that its voice websocket to
// Discord closed.
type WebSocketClosed struct {
	GuildID  string
	Code     int
	Reason   string
	ByRemote bool
}

type ChannelDisconnected struct {
	GuildID   string
	ChannelID string
	// Vacated is set when the bot left the channel on Discord's side.
	Vacated bool
	// NodeLost is set when the session ended because the node went away.
	NodeLost bool
}

type StatsReceived struct {
	Stats Stats
}

type NodeConnected struct {
	Reconnected bool
}

type NodeDisconnected struct {
	// Clean is set when the disconnect was requested by Stop.
	Clean bool
	Code  int
}

type SocketError struct {
	Err error
}

func (PlayerUpdated) Kind() EventKind       { return EventPlayerUpdated }
func (TrackStarted) Kind() EventKind        { return EventTrackStarted }
func (TrackFinished) Kind() EventKind       { return EventTrackFinished }
func (TrackStuck) Kind() EventKind          { return EventTrackStuck }
func (TrackException) Kind() EventKind      { return EventTrackException }
func (WebSocketClosed) Kind() EventKind     { return EventWebSocketClosed }
func (ChannelDisconnected) Kind() EventKind { return EventChannelDisconnected }
func (StatsReceived) Kind() EventKind       { return EventStatsReceived }
func (NodeConnected) Kind() EventKind       { return EventNodeConnected }
func (NodeDisconnected) Kind() EventKind    { return EventNodeDisconnected }
func (SocketError) Kind() EventKind         { return EventSocketError }

// Handler receives published events. Handlers run on the publishing
// goroutine, usually the socket read loop, and must not block.
type Handler func(Event)

// EventRegistry is a publish/subscribe registry keyed by event kind.
type EventRegistry struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventKind]map[uint64]Handler
}

func NewEventRegistry() *EventRegistry {
	return &EventRegistry{
		handlers: make(map[EventKind]map[uint64]Handler),
	}
}

// Subscribe registers h for kind. The returned function removes it and
// may be called more than once.
func (r *EventRegistry) Subscribe(kind EventKind, h Handler) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	if r.handlers[kind] == nil {
		r.handlers[kind] = make(map[uint64]Handler)
	}
	r.handlers[kind][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.handlers[kind], id)
		})
	}
}

// SubscribeAll registers h for every kind in kinds.
func (r *EventRegistry) SubscribeAll(h Handler, kinds ...EventKind) (unsubscribe func()) {
	unsubs := make([]func(), 0, len(kinds))
	for _, kind := range kinds {
		unsubs = append(unsubs, r.Subscribe(kind, h))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Publish calls every handler subscribed to e's kind.
func (r *EventRegistry) Publish(e Event) {
	r.mu.RLock()
	handlers := make([]Handler, 0, len(r.handlers[e.Kind()]))
	for _, h := range r.handlers[e.Kind()] {
		handlers = append(handlers, h)
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Subscribers returns how many handlers are registered for kind.
func (r *EventRegistry) Subscribers(kind EventKind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[kind])
}
