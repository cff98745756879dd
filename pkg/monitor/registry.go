package monitor

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = time.Second

	// sendBuffer is how many undelivered events a client may fall behind by
	// before it is disconnected.
	sendBuffer = 64
)

// Client is one websocket subscriber. Events are queued with Send and written
// by the client's own writer goroutine, so a stalled peer never blocks the
// scheduler.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time
	IPAddress   string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps conn with an empty send buffer
func NewClient(id string, conn *websocket.Conn, ip string) *Client {
	return &Client{
		ID:          id,
		Conn:        conn,
		ConnectedAt: time.Now(),
		IPAddress:   ip,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
	}
}

// Send queues data without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close stops the writer and closes the connection. It may be called more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.Conn.Close()
	})
}

// writePump delivers queued messages until the client is closed or a write fails
func (c *Client) writePump() error {
	for {
		select {
		case <-c.done:
			return nil
		case data := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		}
	}
}

// ClientRegistry tracks connected clients
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewClientRegistry creates an empty registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
	}
}

func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[client.ID] = client
}

func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, clientID)
}

// GetAll returns a copy of the connected clients
func (r *ClientRegistry) GetAll() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}
