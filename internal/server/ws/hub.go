package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

const (
	// maxMessageSize caps inbound frames; subscribers are not expected to
	// send anything but control frames.
	maxMessageSize = 4096

	defaultPingPeriod   = 54 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// HubConfig configures the WebSocket endpoint.
type HubConfig struct {
	PingPeriod     time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string // empty allows any origin
	Symbols        []string // reported in the status envelope
}

// Hub accepts WebSocket subscribers and registers them for broadcast.
type Hub struct {
	registry *Registry
	upgrader websocket.Upgrader
	cfg      HubConfig
	pongWait time.Duration
	logger   *slog.Logger
}

// NewHub creates a Hub that registers accepted connections in registry.
func NewHub(registry *Registry, cfg HubConfig, logger *slog.Logger) *Hub {
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = defaultPingPeriod
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	h := &Hub{
		registry: registry,
		cfg:      cfg,
		pongWait: cfg.PingPeriod * 10 / 9,
		logger:   logger.With(slog.String("component", "ws")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Registry returns the hub's registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// HandleWS upgrades the request, sends a status envelope and registers the
// connection. It blocks until the peer goes away.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newConn(uuid.NewString(), wsConn, h.cfg.WriteTimeout)

	// The status envelope goes out before Add so it is always the first frame.
	hello, err := domain.NewEnvelope(domain.EnvelopeStatus, domain.StatusPayload{
		Connections: h.registry.Len() + 1,
		Symbols:     h.cfg.Symbols,
	}).Encode()
	if err == nil {
		if err := c.Send(r.Context(), hello); err != nil {
			h.logger.Warn("send status failed",
				slog.String("subscriber", c.ID()),
				slog.String("error", err.Error()),
			)
			_ = c.Close()
			return
		}
	}

	h.registry.Add(c)
	h.logger.Info("subscriber connected",
		slog.String("subscriber", c.ID()),
		slog.String("remote", r.RemoteAddr),
		slog.Int("total", h.registry.Len()),
	)

	done := make(chan struct{})
	go h.pingLoop(c, done)

	h.readLoop(c)
	close(done)

	h.registry.Remove(c)
	h.logger.Info("subscriber disconnected",
		slog.String("subscriber", c.ID()),
		slog.Int("total", h.registry.Len()),
	)
}

// Shutdown closes every registered connection.
func (h *Hub) Shutdown(_ context.Context) {
	n := h.registry.CloseAll()
	h.logger.Info("closed subscribers", slog.Int("count", n))
}

// readLoop discards inbound frames and returns when the connection fails or
// its read deadline passes without a pong.
func (h *Hub) readLoop(c *conn) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(h.pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("unexpected close",
					slog.String("subscriber", c.ID()),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

func (h *Hub) pingLoop(c *conn, done <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				h.registry.Remove(c)
				return
			}
		}
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
