package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"roadscan/internal/logger"
	"roadscan/internal/models"

	"github.com/gorilla/websocket"
)

const (
	// clientQueueSize is how many messages a viewer may fall behind before it is dropped.
	clientQueueSize = 8
	writeWait       = 10 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// HubService fans detection batches out to connected viewers. Broadcasting
// never blocks the caller: a full hub drops the message and a viewer that
// cannot keep up is disconnected.
type HubService struct {
	clients    map[*websocket.Conn]*client
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

// NewHubService creates a hub. Call Run to start it.
func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]*client),
		broadcast:  make(chan []byte, clientQueueSize),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then
// disconnects every viewer.
func (h *HubService) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn, c := range h.clients {
				h.remove(conn, c)
			}
			h.mutex.Unlock()
			return nil

		case conn := <-h.register:
			c := &client{conn: conn, send: make(chan []byte, clientQueueSize)}
			h.mutex.Lock()
			h.clients[conn] = c
			count := len(h.clients)
			h.mutex.Unlock()
			go h.writePump(c)
			h.logger.Info("Viewer connected. Total: %d", count)

		case conn := <-h.unregister:
			h.mutex.Lock()
			if c, ok := h.clients[conn]; ok {
				h.remove(conn, c)
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for conn, c := range h.clients {
				select {
				case c.send <- message:
				default:
					h.logger.Warning("Viewer %s too slow, disconnecting", conn.RemoteAddr())
					h.remove(conn, c)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// remove must be called with the mutex held.
func (h *HubService) remove(conn *websocket.Conn, c *client) {
	delete(h.clients, conn)
	close(c.send)
	conn.Close()
}

func (h *HubService) writePump(c *client) {
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message: %v", err)
			h.Unregister(c.conn)
			for range c.send {
			}
			return
		}
	}
}

// Register adds a viewer connection. The hub owns writes to it from now on.
func (h *HubService) Register(conn *websocket.Conn) {
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
	}
}

// Unregister removes and closes a viewer connection.
func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues message for every viewer, dropping it if the hub is busy.
func (h *HubService) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
	}
}

// BroadcastBatch sends batch to every viewer as a JSON array.
func (h *HubService) BroadcastBatch(batch models.Batch) {
	message, err := json.Marshal(batch.NonNil())
	if err != nil {
		h.logger.Error("Error encoding batch: %v", err)
		return
	}
	h.Broadcast(message)
}

// GetClientCount returns the number of connected viewers.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
