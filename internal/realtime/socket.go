package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 32
	writeTimeout   = 5 * time.Second
)

var (
	// ErrSocketClosed indicates a send against a closed connection.
	ErrSocketClosed = errors.New("realtime: socket closed")
	// ErrSendBufferFull indicates the client is not draining its queue.
	// Delivery is best-effort; a stalled peer must not stall the broadcast.
	ErrSendBufferFull = errors.New("realtime: send buffer full")
)

// Socket adapts a websocket connection to the Sink interface. Writes go
// through a buffered channel drained by a single write pump so concurrent
// broadcasts never interleave frames.
type Socket struct {
	conn      *websocket.Conn
	outbound  chan any
	done      chan struct{}
	closeOnce sync.Once
}

// NewSocket wraps an upgraded websocket connection.
func NewSocket(conn *websocket.Conn) *Socket {
	return &Socket{
		conn:     conn,
		outbound: make(chan any, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// Send enqueues a message without blocking. A full buffer or closed
// socket is a delivery failure the caller handles by unregistering.
func (s *Socket) Send(message any) error {
	select {
	case <-s.done:
		return ErrSocketClosed
	default:
	}
	select {
	case s.outbound <- message:
		return nil
	case <-s.done:
		return ErrSocketClosed
	default:
		return ErrSendBufferFull
	}
}

// Close tears the socket down. Idempotent.
func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// writePump drains the outbound queue onto the wire with a bounded write
// deadline per frame. It exits when the socket closes or a write fails.
func (s *Socket) writePump() {
	defer s.Close()
	for {
		select {
		case <-s.done:
			return
		case message := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(message); err != nil {
				return
			}
		}
	}
}
