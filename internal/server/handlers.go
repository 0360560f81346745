// Package server exposes HTTP handlers, including WebSocket upgrades and
// health checks.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// WebSocketHandler handles WebSocket upgrade requests. It validates that the
// request uses the GET method, upgrades the HTTP connection, and registers a
// new Client with the hub, which starts the client's read/write pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	client := NewClient(conn, s.hub, s.registry, s.cfg, r.RemoteAddr, s.logger.Named("client"))
	if !s.hub.Register(client) {
		s.logger.Info("rejecting connection during shutdown", zap.String("remote_addr", r.RemoteAddr))
		_ = conn.Close()
	}
}

// HealthHandler provides a simple liveness endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomchat server is running!")
}

type healthStatus struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
}

// HealthzHandler reports room and connection counts as JSON.
func (s *Server) HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := healthStatus{
		Status:      "ok",
		Rooms:       s.registry.RoomCount(),
		Connections: s.hub.ClientCount(),
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn("error writing health response", zap.Error(err))
	}
}
