package lavalink

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/glizzus/lavanode/internal/metrics"
	"github.com/gorilla/websocket"
)

const socketWriteTimeout = 10 * time.Second

// Dialer opens the control-plane websocket. *websocket.Dialer implements it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// socket is one websocket connection to the node. A reconnect replaces the
// whole socket; it is never reused.
type socket struct {
	conn *websocket.Conn

	// writeMu makes the socket single writer. gorilla connections support
	// one concurrent writer only.
	writeMu sync.Mutex
}

func newSocket(conn *websocket.Conn) *socket {
	return &socket{conn: conn}
}

func (s *socket) send(frame outbound) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout)); err != nil {
		return err
	}
	if err := s.conn.WriteJSON(frame); err != nil {
		return err
	}
	metrics.FramesSent.WithLabelValues(frame.opName()).Inc()
	return nil
}

func (s *socket) read() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

// close sends a close frame with code and tears down the connection.
func (s *socket) close(code int, text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	werr := s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(socketWriteTimeout),
	)
	if errors.Is(werr, websocket.ErrCloseSent) {
		werr = nil
	}
	return errors.Join(werr, s.conn.Close())
}

// closeCode extracts the close code of a read error. Errors that are not
// close frames, such as a dropped TCP connection, count as abnormal closure.
func closeCode(err error) (code int, isCloseFrame bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return websocket.CloseAbnormalClosure, false
}
