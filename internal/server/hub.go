// Package server tracks live WebSocket clients and delivers registry events
// to them through the Hub type.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/registry"
)

// Hub owns the set of live clients. It implements registry.Notifier: every
// delivery is a non-blocking enqueue, and a client whose buffer is full is
// dropped instead of stalling the registry.
type Hub struct {
	clients    map[registry.ConnID]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	logger     *zap.Logger
	metrics    *HubMetrics
}

// NewHub creates and initializes a new Hub instance. The returned Hub is
// ready to manage WebSocket connections once Run is started.
func NewHub(logger *zap.Logger, metrics *HubMetrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewHubMetrics(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[registry.ConnID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    metrics,
	}
}

// Register hands a client to the hub, which starts its pumps. It returns
// false if the hub is shutting down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. It returns once Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()
			h.metrics.Connections.Inc()
			h.logger.Info("client registered",
				zap.String("conn_id", string(client.id)),
				zap.String("remote_addr", client.addr),
				zap.Int("clients", clientCount))

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			removed := h.detachLocked(client)
			clientCount := len(h.clients)
			h.mutex.Unlock()
			if removed {
				close(client.send)
				h.logger.Info("client unregistered",
					zap.String("conn_id", string(client.id)),
					zap.String("remote_addr", client.addr),
					zap.Int("clients", clientCount))
			}
		}
	}
}

// Notify delivers ev to the listed connections.
func (h *Hub) Notify(ids []registry.ConnID, ev registry.Event) {
	if len(ids) == 0 {
		return
	}
	payload, ok := h.encode(OutboundFrame{Event: ev.Name, Data: ev.Data})
	if !ok {
		return
	}

	var failed []*Client
	h.mutex.RLock()
	for _, id := range ids {
		client, exists := h.clients[id]
		if !exists {
			continue
		}
		if !client.enqueue(payload) {
			failed = append(failed, client)
		}
	}
	h.mutex.RUnlock()

	h.removeFailedClients(failed)
}

// NotifyAll delivers ev to every registered client.
func (h *Hub) NotifyAll(ev registry.Event) {
	payload, ok := h.encode(OutboundFrame{Event: ev.Name, Data: ev.Data})
	if !ok {
		return
	}

	var failed []*Client
	h.mutex.RLock()
	for _, client := range h.clients {
		if !client.enqueue(payload) {
			failed = append(failed, client)
		}
	}
	h.mutex.RUnlock()

	h.removeFailedClients(failed)
}

// SendTo delivers a single frame to one client, typically a reply.
func (h *Hub) SendTo(id registry.ConnID, frame OutboundFrame) bool {
	payload, ok := h.encode(frame)
	if !ok {
		return false
	}

	h.mutex.RLock()
	client, exists := h.clients[id]
	sent := exists && client.enqueue(payload)
	h.mutex.RUnlock()

	if exists && !sent {
		h.removeFailedClients([]*Client{client})
	}
	return sent
}

func (h *Hub) encode(frame OutboundFrame) ([]byte, bool) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to encode frame", zap.String("event", frame.Event), zap.Error(err))
		return nil, false
	}
	return payload, true
}

// detachLocked removes client from the table. Callers hold h.mutex.
func (h *Hub) detachLocked(client *Client) bool {
	if current, exists := h.clients[client.id]; !exists || current != client {
		return false
	}
	delete(h.clients, client.id)
	client.closed = true
	h.metrics.Connections.Dec()
	return true
}

// removeFailedClients removes clients that failed to receive messages and closes their channels
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if h.detachLocked(client) {
			channelsToClose = append(channelsToClose, client.send)
			h.metrics.Dropped.Inc()
			h.logger.Warn("client removed due to full send buffer",
				zap.String("conn_id", string(client.id)),
				zap.String("remote_addr", client.addr))
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients detaches every client and closes its connection.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	for _, client := range clients {
		h.detachLocked(client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.logger.Warn("error closing client connection",
					zap.String("conn_id", string(client.id)),
					zap.Error(err))
			}
		}
	}

	h.logger.Info("closed client connections", zap.Int("count", len(clients)))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
