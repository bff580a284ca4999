// Package session owns the transport side of one client connection and
// the registry mapping authenticated identities to live sessions.
package session

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Config holds WebSocket connection tuning.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// Session is one live client connection. The transport layer owns it;
// the Registry only references it. Anonymous until a Login or Register
// command binds an identity.
type Session struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	config Config
	closed atomic.Bool
}

// TrySend enqueues a frame for delivery, dropping it (and reporting
// false) when the session is closed or its buffer is full. Never blocks.
func (s *Session) TrySend(msg []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.Send <- msg:
		return true
	default:
		return false
	}
}

// Close terminates the underlying connection. Safe to call repeatedly
// and on sessions that never had a transport (tests).
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	if s.Conn != nil {
		s.Conn.Close()
	}
}

// RemoteAddr describes the connection's peer for operator listings.
func (s *Session) RemoteAddr() string {
	if s.Conn == nil {
		return "local"
	}
	return s.Conn.RemoteAddr().String()
}

// Handler upgrades HTTP requests to WebSocket sessions and runs their
// read/write pumps. Inbound frames and disconnects are handed to the
// callbacks; the handler itself never touches relay state.
type Handler struct {
	upgrader  websocket.Upgrader
	config    Config
	onMessage func(*Session, []byte)
	onClose   func(*Session)
}

// NewHandler creates a WebSocket upgrade handler.
func NewHandler(config Config, onMessage func(*Session, []byte), onClose func(*Session)) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:    config,
		onMessage: onMessage,
		onClose:   onClose,
	}
}

// ServeHTTP upgrades the request and starts the session pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	s := &Session{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		ConnectedAt: time.Now(),
		config:      h.config,
	}

	go s.writePump()
	go h.readPump(s)

	log.Info().
		Str("session_id", s.ID).
		Str("remote_addr", s.RemoteAddr()).
		Msg("client connected")
}

// writePump drains the send buffer onto the wire and keeps the
// connection alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case msg, ok := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if !ok {
				s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("session_id", s.ID).Msg("write failed, closing session")
				return
			}
		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump delivers inbound frames to the message callback until the
// connection drops, then reports the disconnect exactly once.
func (h *Handler) readPump(s *Session) {
	defer func() {
		s.Close()
		h.onClose(s)
	}()

	s.Conn.SetReadLimit(h.config.MaxMessageSize)
	s.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		return nil
	})

	for {
		_, msg, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("session_id", s.ID).Msg("unexpected WebSocket close")
			}
			return
		}
		h.onMessage(s, msg)
		s.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	}
}
