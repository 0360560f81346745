// Package server assembles the hub, the room registry, and the HTTP surface
// of the roomchat service.
package server

import (
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/registry"
)

// Server wires one Hub and one Registry together. Each Server owns its own
// state, so several can run side by side in tests.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	hub      *Hub
	registry *registry.Registry
	metrics  *prometheus.Registry
	origins  *originPolicy
	upgrader websocket.Upgrader
}

// New creates a Server from cfg. A nil cfg uses defaults and a nil logger
// discards output.
func New(cfg *Config, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sanitized := cfg.sanitized()

	promRegistry := prometheus.NewRegistry()
	hub := NewHub(logger.Named("hub"), NewHubMetrics(promRegistry))
	reg := registry.New(hub,
		registry.WithLogger(logger.Named("registry")),
		registry.WithMetrics(registry.NewMetrics(promRegistry)),
	)
	origins := newOriginPolicy(sanitized.AllowedOrigins, logger)

	return &Server{
		cfg:      sanitized,
		logger:   logger,
		hub:      hub,
		registry: reg,
		metrics:  promRegistry,
		origins:  origins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}
}

// Start runs the hub loop in a separate goroutine. It must be called before
// the HTTP server accepts connections.
func (s *Server) Start() {
	go s.hub.Run()
	s.logger.Info("hub started and ready to manage WebSocket connections")
}

// Hub returns the server's hub for shutdown coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Registry returns the server's room registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Config returns the sanitized configuration the server runs with.
func (s *Server) Config() Config {
	return s.cfg
}
