package ws

import (
	"context"
	"direct-chat/auth"
	"direct-chat/contract"
	"direct-chat/domain"
	"direct-chat/errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/gorilla/websocket"

	chatruntime "direct-chat/runtime"
)

// Hub is the part of the orchestrator the transport talks to.
type Hub interface {
	Accept(ctx context.Context, conn contract.Connection, token string) *chatruntime.Session
	Disconnect(ctx context.Context, session *chatruntime.Session)
	Route(ctx context.Context, session *chatruntime.Session, cmd domain.RouteCommand)
}

type Config struct {
	BufferSize      int
	DeliveryTimeout time.Duration
	MaxFrameBytes   int64
	// AllowedOrigin is matched against the Origin header, empty accepts same host only.
	AllowedOrigin string
}

// Server upgrades HTTP requests and runs one read loop per connection.
type Server struct {
	log      *slog.Logger
	hub      Hub
	cfg      Config
	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, hub Hub, cfg Config) *Server {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 5 * time.Second
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = 10 << 20
	}
	s := &Server{log: log, hub: hub, cfg: cfg}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.cfg.AllowedOrigin == "*" || origin == s.cfg.AllowedOrigin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.log.Debug("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(ws, s.log, s.cfg.BufferSize, s.cfg.DeliveryTimeout)
	go conn.writePump()

	// The request context ends with the handler, sessions outlive it
	ctx := context.WithoutCancel(r.Context())
	session := s.hub.Accept(ctx, conn, auth.TokenFromRequest(r))
	defer s.hub.Disconnect(ctx, session)

	ws.SetReadLimit(s.cfg.MaxFrameBytes)
	ws.SetPongHandler(func(string) error {
		session.Pong()
		return nil
	})

	s.readLoop(ctx, conn, session)
}

func (s *Server) readLoop(ctx context.Context, conn *Conn, session *chatruntime.Session) {
	for {
		kind, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				conn.log.Info("Connection closed unexpectedly", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		cmd, err := DecodeCommand(raw)
		if err != nil {
			conn.log.Debug("Frame ignored", "error", err)
			continue
		}
		s.route(ctx, conn, session, cmd)
	}
}

// route isolates a single frame so a panic while handling it
// never takes the read loop down.
func (s *Server) route(ctx context.Context, conn *Conn, session *chatruntime.Session, cmd domain.RouteCommand) {
	defer func() {
		if r := recover(); r != nil {
			conn.log.Error("Panic while routing frame", "error", errors.ErrWorkerPanic, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	s.hub.Route(ctx, session, cmd)
}
