package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 4096
	defaultSendQueue = 64

	closeReasonWriteFailed = "write_failed"
	closeReasonReadClosed  = "read_closed"
)

// session adapts a websocket connection to sim.Session. Frames are queued on a
// bounded channel and written by a dedicated pump; a full queue reports the
// session as slow instead of blocking the loop.
type session struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	reason    string
}

func newSession(conn *websocket.Conn, queue int) *session {
	if queue <= 0 {
		queue = defaultSendQueue
	}
	return &session{
		conn: conn,
		send: make(chan []byte, queue),
		done: make(chan struct{}),
	}
}

// Send queues a frame without blocking.
func (s *session) Send(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the connection.
func (s *session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *session) closeReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.Close(closeReasonWriteFailed)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close(closeReasonWriteFailed)
				return
			}
		case <-s.done:
			message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, s.closeReason())
			s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
			return
		}
	}
}
