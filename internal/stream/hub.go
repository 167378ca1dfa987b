// Package stream pushes price ticks and trade settlements to websocket clients.
package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/options-simulator/internal/service"
	"go.uber.org/zap"
)

const (
	EventPriceUpdate  = "price_update"
	EventTradeSettled = "trade_settled"
	EventWelcome      = "welcome"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Message is the envelope of every frame sent to clients
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client is one websocket connection
type Client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub fans messages out to every connected client. Slow clients whose
// buffer is full are dropped rather than blocking the publisher.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.Named("stream"),
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("Client registered", zap.Int("clients", h.ClientCount()))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues a message for every client. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Publish(event string, data interface{}) {
	select {
	case h.broadcast <- Message{Event: event, Data: data}:
	default:
		h.logger.Warn("Broadcast queue full, dropping message", zap.String("event", event))
	}
}

// OnPriceUpdate implements service.PriceListener
func (h *Hub) OnPriceUpdate(quote service.Quote) {
	h.Publish(EventPriceUpdate, quote)
}

// OnTradeSettled implements service.SettlementListener
func (h *Hub) OnTradeSettled(event service.SettlementEvent) {
	h.Publish(EventTradeSettled, event)
}

// ServeWS upgrades the request and attaches the connection to the hub
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Upgrade failed", zap.Error(err))
		return
	}

	client := &Client{conn: conn, send: make(chan Message, sendBuffer)}
	client.send <- Message{Event: EventWelcome, Data: "connected"}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

// readPump discards client frames and detects disconnects
func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Client read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump sends queued messages and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
