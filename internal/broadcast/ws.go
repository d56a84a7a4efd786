package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/websocket"
)

const (
	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultSyncTimeout bounds the count lookup for sync replies.
	DefaultSyncTimeout = 2 * time.Second

	maxFramePayloadBytes = 4 << 10
	maxFramesPerSecond   = 20
)

// clientFrame is a client to server frame.
type clientFrame struct {
	Type string `json:"type"`
}

// HandlerConfig configures the websocket endpoint.
type HandlerConfig struct {
	Hub    *Hub
	Source CountSource
	Logger *slog.Logger
	// AllowedOrigins restricts browser origins. Empty or "*" allows any;
	// requests without an Origin header are always accepted.
	AllowedOrigins []string
	WriteTimeout   time.Duration
	SyncTimeout    time.Duration
}

// Handler serves the broadcast channel over websocket.
type Handler struct {
	hub          *Hub
	source       CountSource
	logger       *slog.Logger
	origins      map[string]struct{}
	allowAll     bool
	writeTimeout time.Duration
	syncTimeout  time.Duration
}

// NewHandler creates a websocket handler bound to cfg.Hub.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		hub:          cfg.Hub,
		source:       cfg.Source,
		logger:       cfg.Logger.With("component", "broadcast.ws"),
		origins:      make(map[string]struct{}),
		allowAll:     len(cfg.AllowedOrigins) == 0,
		writeTimeout: cfg.WriteTimeout,
		syncTimeout:  cfg.SyncTimeout,
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = DefaultWriteTimeout
	}
	if h.syncTimeout <= 0 {
		h.syncTimeout = DefaultSyncTimeout
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			h.allowAll = true
		}
		h.origins[origin] = struct{}{}
	}
	return h
}

// ServeHTTP upgrades GET requests to a websocket subscription.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	server := websocket.Server{
		Handshake: h.handshake,
		Handler:   h.serveConn,
	}
	server.ServeHTTP(w, r)
}

func (h *Handler) handshake(config *websocket.Config, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}
	config.Origin = u

	if h.allowAll {
		return nil
	}
	if _, ok := h.origins[origin]; ok {
		return nil
	}
	h.logger.Warn("websocket origin rejected", "origin", origin, "remote", r.RemoteAddr)
	return errors.New("origin not allowed")
}

func (h *Handler) serveConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	// Hijacked connections keep the server's deadlines.
	_ = conn.SetDeadline(time.Time{})
	conn.MaxPayloadBytes = maxFramePayloadBytes

	sub, err := h.hub.Join(&wsSender{conn: conn, timeout: h.writeTimeout})
	if err != nil {
		return
	}
	defer h.hub.Leave(sub)

	h.logger.Debug("subscriber open", "subscriber", sub.ID())
	h.sync(sub)

	windowStart := time.Now()
	framesInWindow := 0

	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			h.logger.Debug("subscriber closed", "subscriber", sub.ID(), "error", err)
			return
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			h.logger.Warn("subscriber frame rate exceeded", "subscriber", sub.ID())
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.logger.Debug("ignoring malformed frame", "subscriber", sub.ID(), "error", err)
			continue
		}

		switch frame.Type {
		case TypeGetCount:
			h.sync(sub)
		default:
			h.logger.Debug("ignoring frame", "subscriber", sub.ID(), "type", frame.Type)
		}
	}
}

// sync queues the current count for sub.
func (h *Handler) sync(sub *Subscriber) {
	ctx, cancel := context.WithTimeout(context.Background(), h.syncTimeout)
	defer cancel()

	count, ok := h.hub.syncValue(ctx, h.source)
	if !ok {
		return
	}
	if err := sub.Sync(count); err != nil {
		h.hub.metrics.IncBroadcastDropped()
		h.hub.remove(sub, err)
	}
}

// wsSender writes JSON frames with a per-write deadline.
type wsSender struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *wsSender) Send(msg Message) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}
	return websocket.JSON.Send(s.conn, msg)
}

func (s *wsSender) Close() error {
	return s.conn.Close()
}
