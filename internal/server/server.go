// Package server assembles the HTTP and WebSocket API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alanyoungcy/b3stream/internal/domain"
	"github.com/alanyoungcy/b3stream/internal/server/handler"
	"github.com/alanyoungcy/b3stream/internal/server/middleware"
	"github.com/alanyoungcy/b3stream/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	RateLimit   int // requests per RateWindow per client on POST endpoints; 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Market    *handler.MarketHandler
	Trade     *handler.TradeHandler
	Positions *handler.PositionHandler
	Account   *handler.AccountHandler
}

// Deps are the optional collaborators of the server. Nil fields disable the
// feature they back.
type Deps struct {
	Hub            *ws.Hub
	Limiter        domain.RateLimiter
	Metrics        http.Handler
	HTTPMiddleware func(http.Handler) http.Handler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on a ServeMux and the
// middleware chain applied.
func NewServer(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           Routes(cfg, handlers, deps, logger),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Routes builds the handler tree. It is exported for tests.
func Routes(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	post := func(scope string, h http.HandlerFunc) http.Handler {
		if deps.Limiter == nil || cfg.RateLimit <= 0 {
			return h
		}
		return middleware.RateLimit(deps.Limiter, scope, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}

	mux.HandleFunc("GET /{$}", handlers.Health.Root)
	mux.HandleFunc("GET /health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/v1/market/{symbol}", handlers.Market.GetQuote)
	mux.Handle("POST /api/v1/trade", post("trade", handlers.Trade.Execute))
	mux.Handle("POST /api/v1/mt5/signal", post("signal", handlers.Trade.Signal))
	mux.HandleFunc("GET /api/v1/positions", handlers.Positions.ListPositions)
	mux.HandleFunc("GET /api/v1/account", handlers.Account.GetAccount)

	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	var h http.Handler = mux
	if deps.HTTPMiddleware != nil {
		h = deps.HTTPMiddleware(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server: starting", slog.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline. Hijacked WebSocket
// connections are not tracked here; close them through the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
