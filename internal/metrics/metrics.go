// Package metrics exposes Prometheus instrumentation for the node connection.
package metrics

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lavalink_frames_received_total",
		Help: "Control-plane frames received from the node, by op.",
	}, []string{"op"})
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lavalink_frames_dropped_total",
		Help: "Inbound frames dropped because they were malformed.",
	}, []string{"reason"})
	FramesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lavalink_frames_sent_total",
		Help: "Control-plane frames sent to the node, by op.",
	}, []string{"op"})

	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lavalink_reconnects_total",
		Help: "Reconnect attempts after an abnormal close.",
	})
	SocketErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lavalink_socket_errors_total",
		Help: "Socket level errors reported by the transport.",
	})
	NodeState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lavalink_node_state",
		Help: "Connection state: 0 disconnected, 1 connecting, 2 connected, 3 reconnecting.",
	})

	GuildSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lavalink_guild_sessions",
		Help: "Live guild playback sessions.",
	})
	HandshakeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lavalink_voice_handshake_failures_total",
		Help: "Voice handshakes that timed out or were cancelled.",
	})

	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lavalink_events_published_total",
		Help: "Node events appended to the event stream.",
	})
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lavalink_events_dropped_total",
		Help: "Node events dropped because the publish buffer was full.",
	})

	NodePlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lavalink_node_players",
		Help: "Players reported by the node stats frame.",
	})
	NodePlayingPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lavalink_node_playing_players",
		Help: "Playing players reported by the node stats frame.",
	})
)

// Serve exposes the default registry on addr at path. It blocks like
// http.ListenAndServe and returns nil once the server is shut down.
func Serve(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	slog.Info("Starting metrics server", "addr", addr, "path", path)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
