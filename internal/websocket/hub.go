package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"staff-tracker/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Client is one connected admin.
type Client struct {
	Conn      *websocket.Conn
	AccountID int
	mu        sync.Mutex
}

func (c *Client) write(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, message)
}

// Hub fans events out to connected admins. All client bookkeeping happens on
// the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.Conn.Close()
			}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			h.drop(client)
		case message := <-h.broadcast:
			for client := range h.clients {
				if err := client.write(message); err != nil {
					logger.SystemLogger.Info("Dropping websocket client", zap.Int("account_id", client.AccountID), zap.Error(err))
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.Conn.Close()
	}
}

func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every client. It never blocks; when the
// queue is full the message is dropped and false is returned.
func (h *Hub) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

// Event is the envelope sent over the admin feed.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (h *Hub) Publish(eventType string, data interface{}) bool {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		logger.ErrorLogger.Error("Encoding websocket event", zap.String("type", eventType), zap.Error(err))
		return false
	}
	return h.Broadcast(payload)
}

// Handler upgrades the request and keeps the client registered until it
// disconnects. The account id is read from the "auth_account" local.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		accountID, _ := conn.Locals("auth_account").(int)
		client := &Client{Conn: conn, AccountID: accountID}
		if !h.Register(client) {
			return
		}
		defer h.Unregister(client)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
