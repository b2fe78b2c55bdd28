// Package ws exposes the realtime socket gateway. Each upgraded connection
// becomes one presence session; server events flow out as JSON frames and the
// read side exists only to observe pongs and closure.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pingline/pingline/internal/event"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 5 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping period, must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Inbound frames carry no payload the server acts on; keep them small.
	readLimit = 1024

	// Outbound event buffer per session.
	sendBuffer = 64
)

// Session is one live websocket connection of an authenticated user.
type Session struct {
	id     string
	userID string

	conn   *websocket.Conn
	send   chan event.Event
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(id, userID string, conn *websocket.Conn, log *slog.Logger) *Session {
	return &Session{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan event.Event, sendBuffer),
		logger: log.With(slog.String("session_id", id), slog.String("user_id", userID)),
		done:   make(chan struct{}),
	}
}

// ID returns the server-issued session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the authenticated owner of the connection.
func (s *Session) UserID() string { return s.userID }

// Send queues an event for delivery. It never blocks: when the session's
// buffer is full or the session is closed it reports false and the event is
// dropped, the client resyncs over REST on reconnect.
func (s *Session) Send(ev event.Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- ev:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// close shuts the session down once. Safe to call from both pumps.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// writePump serializes queued events onto the connection and keeps the peer
// alive with periodic pings. It owns all writes to the connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case ev := <-s.send:
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("encode event failed", slog.Any("error", err))
				continue
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("write failed", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// readPump drains inbound frames so control messages are processed. Clients
// do not send application data over the socket; any read error ends the
// session.
func (s *Session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(readLimit)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("read failed", slog.Any("error", err))
			}
			return
		}
	}
}
