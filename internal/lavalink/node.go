package lavalink

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glizzus/lavanode/internal/config"
	"github.com/glizzus/lavanode/internal/handshake"
	"github.com/glizzus/lavanode/internal/metrics"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Options configures a Node.
type Options struct {
	// URL is the control-plane websocket, e.g. ws://localhost:2333/.
	URL      string
	Password string

	ResumeKey     string
	ResumeTimeout time.Duration

	HandshakeTimeout      time.Duration
	WebSocketCloseTimeout time.Duration

	ReconnectInitialInterval time.Duration
	ReconnectMaxInterval     time.Duration
	// ReconnectMaxElapsed bounds a reconnect attempt. Zero retries forever.
	ReconnectMaxElapsed time.Duration

	// Dialer defaults to websocket.DefaultDialer.
	Dialer Dialer
}

// OptionsFromConfig builds Options from the environment configuration.
// resumeKey overrides cfg.ResumeKey when the caller generated one.
func OptionsFromConfig(cfg *config.LavalinkConfig, resumeKey string) Options {
	if resumeKey == "" {
		resumeKey = cfg.ResumeKey
	}
	return Options{
		URL:                      cfg.SocketURL(),
		Password:                 cfg.Password,
		ResumeKey:                resumeKey,
		ResumeTimeout:            cfg.ResumeTimeout,
		HandshakeTimeout:         cfg.HandshakeTimeout,
		WebSocketCloseTimeout:    cfg.WebSocketCloseTimeout,
		ReconnectInitialInterval: cfg.ReconnectInitialInterval,
		ReconnectMaxInterval:     cfg.ReconnectMaxInterval,
		ReconnectMaxElapsed:      cfg.ReconnectMaxElapsed,
	}
}

func (o *Options) setDefaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WebSocketCloseTimeout <= 0 {
		o.WebSocketCloseTimeout = 30 * time.Second
	}
	if o.ResumeTimeout <= 0 {
		o.ResumeTimeout = 60 * time.Second
	}
	if o.ReconnectInitialInterval <= 0 {
		o.ReconnectInitialInterval = 500 * time.Millisecond
	}
	if o.ReconnectMaxInterval <= 0 {
		o.ReconnectMaxInterval = 30 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
}

type voiceHandshake = handshake.Coordinator[VoiceState, VoiceServer]

// Node is a connection to one audio node.
type Node struct {
	opts    Options
	gateway Gateway
	events  *EventRegistry

	// sock is swapped wholesale on reconnect.
	sock  atomic.Pointer[socket]
	state atomic.Int32

	sessions   *guildMap[*GuildSession]
	handshakes *guildMap[*voiceHandshake]
	connecting singleflight.Group

	statsMu sync.RWMutex
	stats   Stats

	headersMu sync.Mutex
	headers   http.Header

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool

	disconnectOnce sync.Once
	done           chan struct{}
}

func NewNode(gateway Gateway, opts Options) *Node {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		opts:       opts,
		gateway:    gateway,
		events:     NewEventRegistry(),
		sessions:   newGuildMap[*GuildSession](),
		handshakes: newGuildMap[*voiceHandshake](),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Events is the node wide registry. It receives node events and every
// event raised by the node's guild sessions.
func (n *Node) Events() *EventRegistry {
	return n.events
}

func (n *Node) State() State {
	return State(n.state.Load())
}

func (n *Node) setState(s State) {
	n.state.Store(int32(s))
	metrics.NodeState.Set(float64(s))
}

// Done is closed once the node has reached its terminal disconnected state.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Stats returns a copy of the aggregate node statistics.
func (n *Node) Stats() Stats {
	n.statsMu.RLock()
	defer n.statsMu.RUnlock()
	return n.stats.clone()
}

// Session returns the live session of a guild.
func (n *Node) Session(guildID string) (*GuildSession, bool) {
	return n.sessions.load(guildID)
}

// Sessions returns a snapshot of the live sessions by guild id.
func (n *Node) Sessions() map[string]*GuildSession {
	return n.sessions.snapshot()
}

// Connect opens the control-plane socket. The gateway must already know the
// bot user id and shard count. A node holds one socket at a time, so Connect
// fails with ErrAlreadyConnected unless the node is disconnected.
func (n *Node) Connect(ctx context.Context) error {
	if n.stopping.Load() {
		return ErrNodeStopped
	}

	userID := n.gateway.UserID()
	shards := n.gateway.ShardCount()
	if userID == "" || shards <= 0 {
		return ErrNotReady
	}

	if !n.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyConnected
	}
	metrics.NodeState.Set(float64(StateConnecting))

	headers := http.Header{}
	headers.Set("Authorization", n.opts.Password)
	headers.Set("Num-Shards", strconv.Itoa(shards))
	headers.Set("User-Id", userID)
	if n.opts.ResumeKey != "" {
		headers.Set("Resume-Key", n.opts.ResumeKey)
	}
	n.headersMu.Lock()
	n.headers = headers
	n.headersMu.Unlock()

	s, err := n.dial(ctx)
	if err != nil {
		n.setState(StateDisconnected)
		return fmt.Errorf("failed to connect to node: %w", err)
	}

	n.onConnected(s, false)
	return nil
}

func (n *Node) dial(ctx context.Context) (*socket, error) {
	n.headersMu.Lock()
	headers := n.headers.Clone()
	n.headersMu.Unlock()

	conn, resp, err := n.opts.Dialer.DialContext(ctx, n.opts.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake returned %s: %w", resp.Status, err)
		}
		return nil, err
	}
	return newSocket(conn), nil
}

func (n *Node) onConnected(s *socket, reconnected bool) {
	n.sock.Store(s)
	n.setState(StateConnected)
	slog.Info("Connected to node", "url", n.opts.URL, "reconnected", reconnected)

	if n.opts.ResumeKey != "" {
		frame := newConfigureResumingFrame(n.opts.ResumeKey, n.opts.ResumeTimeout)
		if err := s.send(frame); err != nil {
			slog.Warn("failed to configure resuming", slog.Any("error", err))
		}
	}

	n.events.Publish(NodeConnected{Reconnected: reconnected})
	go n.readLoop(s)
}

func (n *Node) readLoop(s *socket) {
	for {
		data, err := s.read()
		if err != nil {
			n.handleClose(s, err)
			return
		}
		n.Dispatch(data)
	}
}

func (n *Node) handleClose(s *socket, err error) {
	if n.sock.Load() != s {
		return
	}

	code, isCloseFrame := closeCode(err)
	if !isCloseFrame && !n.stopping.Load() {
		metrics.SocketErrors.Inc()
		n.events.Publish(SocketError{Err: err})
	}

	switch {
	case n.stopping.Load():
		// Stop owns the rest of the shutdown.
	case code == websocket.CloseGoingAway:
		slog.Warn("Node went away, dropping all guild sessions", "code", code)
		n.teardown(code)
	default:
		slog.Warn("Node connection broken, reconnecting", "code", code, slog.Any("error", err))
		go n.reconnect()
	}
}

// reconnect replaces the socket. The first attempt is immediate and later
// ones back off exponentially until ReconnectMaxElapsed.
func (n *Node) reconnect() {
	n.setState(StateReconnecting)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.opts.ReconnectInitialInterval
	b.MaxInterval = n.opts.ReconnectMaxInterval
	b.MaxElapsedTime = n.opts.ReconnectMaxElapsed

	operation := func() error {
		if n.stopping.Load() {
			return backoff.Permanent(ErrNodeStopped)
		}
		metrics.Reconnects.Inc()
		n.setState(StateConnecting)
		s, err := n.dial(n.ctx)
		if err != nil {
			n.setState(StateReconnecting)
			return err
		}
		n.onConnected(s, true)
		return nil
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(b, n.ctx), func(err error, d time.Duration) {
		slog.Warn("Reconnect attempt failed", slog.Any("error", err), "retryIn", d)
	})
	if err == nil {
		return
	}
	if n.stopping.Load() || errors.Is(err, context.Canceled) {
		return
	}
	slog.Error("Giving up on node after reconnect attempts", slog.Any("error", err))
	n.teardown(websocket.CloseAbnormalClosure)
}

// teardown ends every session after the node is gone. Sessions clear their
// voice state on Discord but cannot destroy their players.
func (n *Node) teardown(code int) {
	n.stopping.Store(true)
	n.setState(StateDisconnected)
	n.cancel()

	for _, sess := range sortedSessions(n.sessions.drain()) {
		if err := sess.disconnect(context.Background(), disconnectNodeLost); err != nil && !errors.Is(err, ErrNotConnected) {
			slog.Warn("failed to clear voice state", "guildID", sess.GuildID(), slog.Any("error", err))
		}
	}
	if s := n.sock.Load(); s != nil {
		_ = s.conn.Close()
	}
	n.fireDisconnected(false, code)
}

// Stop disconnects every guild session in guild id order, then closes the
// socket. The node cannot be reused.
func (n *Node) Stop(ctx context.Context) error {
	if !n.stopping.CompareAndSwap(false, true) {
		<-n.done
		return nil
	}

	for _, sess := range sortedSessions(n.sessions.snapshot()) {
		if err := sess.Disconnect(ctx); err != nil && !errors.Is(err, ErrNotConnected) {
			slog.Warn("failed to disconnect guild session", "guildID", sess.GuildID(), slog.Any("error", err))
		}
	}

	n.cancel()
	var err error
	if s := n.sock.Load(); s != nil {
		err = s.close(websocket.CloseNormalClosure, "client shutdown")
	}
	n.setState(StateDisconnected)
	n.fireDisconnected(true, websocket.CloseNormalClosure)
	return err
}

func (n *Node) fireDisconnected(clean bool, code int) {
	n.disconnectOnce.Do(func() {
		slog.Info("Disconnected from node", "clean", clean, "code", code)
		n.events.Publish(NodeDisconnected{Clean: clean, Code: code})
		close(n.done)
	})
}

// send writes a frame on the current socket.
func (n *Node) send(ctx context.Context, frame outbound) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := n.sock.Load()
	if s == nil || n.State() != StateConnected {
		return ErrNotConnected
	}
	if err := s.send(frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", frame.opName(), err)
	}
	return nil
}

func sortedSessions(m map[string]*GuildSession) []*GuildSession {
	sessions := make([]*GuildSession, 0, len(m))
	for _, s := range m {
		sessions = append(sessions, s)
	}
	slices.SortFunc(sessions, func(a, b *GuildSession) int {
		return cmp.Compare(a.GuildID(), b.GuildID())
	})
	return sessions
}
