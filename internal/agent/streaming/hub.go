// Package streaming handles WebSocket connections for real-time agent
// output streaming.
package streaming

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/common/logger"
)

// Stream names clients can subscribe to.
const (
	StreamOutput = "output"
	StreamPlan   = "plan"
	StreamState  = "state"
)

// Envelope wraps every message sent to a client so the stream is
// identifiable on the wire.
type Envelope struct {
	Stream    string      `json:"stream"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID      string
	conn    *websocket.Conn
	streams map[string]bool
	send    chan []byte
	hub     *Hub
	mu      sync.RWMutex
	logger  *logger.Logger
}

// NewClient creates a new WebSocket client
func NewClient(id string, conn *websocket.Conn, hub *Hub, log *logger.Logger) *Client {
	return &Client{
		ID:      id,
		conn:    conn,
		streams: make(map[string]bool),
		send:    make(chan []byte, 256),
		hub:     hub,
		logger:  log.WithFields(zap.String("client_id", id)),
	}
}

// Hub manages all WebSocket clients
type Hub struct {
	clients map[*Client]bool

	// Clients by stream for efficient message routing
	streamClients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Envelope

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		streamClients: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		broadcast:     make(chan *Envelope, 256),
		logger:        log.WithFields(zap.String("component", "websocket_hub")),
	}
}

// Run starts the hub processing loop
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer h.logger.Info("WebSocket hub stopped")

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.streamClients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("Client registered", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for stream := range client.streams {
					h.removeFromStreamLocked(client, stream)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", zap.String("client_id", client.ID))

		case msg := <-h.broadcast:
			h.mu.RLock()
			clients := h.streamClients[msg.Stream]
			h.mu.RUnlock()

			if len(clients) == 0 {
				continue
			}

			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("Failed to marshal envelope", zap.Error(err))
				continue
			}

			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Send buffer full, drop the client
					h.mu.Lock()
					close(client.send)
					delete(h.clients, client)
					for stream := range client.streams {
						h.removeFromStreamLocked(client, stream)
					}
					h.mu.Unlock()
				}
			}
		}
	}
}

func (h *Hub) removeFromStreamLocked(client *Client, stream string) {
	if clients, ok := h.streamClients[stream]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.streamClients, stream)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends data to all clients subscribed to a stream
func (h *Hub) Broadcast(stream string, data interface{}) {
	env := &Envelope{Stream: stream, Timestamp: time.Now(), Data: data}
	select {
	case h.broadcast <- env:
	default:
		h.logger.Warn("Broadcast buffer full, dropping message", zap.String("stream", stream))
	}
}

// SubscribeClient subscribes a client to a stream
func (h *Hub) SubscribeClient(client *Client, stream string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.streamClients[stream]; !ok {
		h.streamClients[stream] = make(map[*Client]bool)
	}
	h.streamClients[stream][client] = true
	h.logger.Debug("Client subscribed",
		zap.String("client_id", client.ID),
		zap.String("stream", stream))
}

// UnsubscribeClient unsubscribes a client from a stream
func (h *Hub) UnsubscribeClient(client *Client, stream string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromStreamLocked(client, stream)
	h.logger.Debug("Client unsubscribed",
		zap.String("client_id", client.ID),
		zap.String("stream", stream))
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetStreamSubscriberCount returns the number of clients on a stream
func (h *Hub) GetStreamSubscriberCount(stream string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.streamClients[stream]; ok {
		return len(clients)
	}
	return 0
}
