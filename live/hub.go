package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Subscriber is the stream side of the broadcaster used by the hub.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan Envelope, error)
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	room   string
	closed bool
	mu     sync.Mutex
}

func NewClient(hub *Hub, conn *websocket.Conn, room string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		room: room,
	}
}

type room struct {
	clients map[*Client]bool
	cancel  context.CancelFunc
}

// Hub fans broadcast channels out to websocket clients. A room exists per
// channel name; the hub subscribes to the channel when the first client joins
// and drops the subscription when the last one leaves.
type Hub struct {
	subscriber Subscriber
	logger     *slog.Logger
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	rooms      map[string]*room
	mu         sync.RWMutex
}

func NewHub(subscriber Subscriber, logger *slog.Logger) *Hub {
	return &Hub{
		subscriber: subscriber,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      make(map[string]*room),
	}
}

// Run serves register and unregister requests until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return nil
		case client := <-h.register:
			h.addClient(ctx, client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register returns false when the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) addClient(ctx context.Context, client *Client) {
	h.mu.RLock()
	r, ok := h.rooms[client.room]
	h.mu.RUnlock()

	if !ok {
		roomCtx, cancel := context.WithCancel(ctx)
		envelopes, err := h.subscriber.Subscribe(roomCtx, client.room)
		if err != nil {
			cancel()
			h.logger.Error("Failed to subscribe room", slog.String("room", client.room), slog.Any("error", err))
			client.close()
			return
		}
		r = &room{clients: make(map[*Client]bool), cancel: cancel}
		go h.forward(client.room, envelopes)
	}

	h.mu.Lock()
	h.rooms[client.room] = r
	r.clients[client] = true
	total := len(r.clients)
	h.mu.Unlock()

	h.logger.Debug("Client registered", slog.String("room", client.room), slog.Int("clients", total))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[client.room]
	if !ok || !r.clients[client] {
		return
	}
	client.close()
	delete(r.clients, client)
	if len(r.clients) == 0 {
		r.cancel()
		delete(h.rooms, client.room)
		h.logger.Debug("Room closed", slog.String("room", client.room))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, r := range h.rooms {
		for client := range r.clients {
			client.close()
		}
		r.cancel()
		delete(h.rooms, name)
	}
}

func (h *Hub) forward(roomID string, envelopes <-chan Envelope) {
	for envelope := range envelopes {
		data, err := json.Marshal(envelope)
		if err != nil {
			h.logger.Error("Failed to marshal envelope", slog.String("room", roomID), slog.Any("error", err))
			continue
		}
		h.BroadcastToRoom(roomID, data)
	}
}

// BroadcastToRoom отправляет сообщение всем клиентам в указанной комнате.
func (h *Hub) BroadcastToRoom(roomID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for client := range r.clients {
		client.mu.Lock()
		if client.closed {
			client.mu.Unlock()
			continue
		}
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Client send buffer full, dropping message", slog.String("room", roomID))
		}
		client.mu.Unlock()
	}
}

func (h *Hub) clientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rooms[roomID]; ok {
		return len(r.clients)
	}
	return 0
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

// ReadPump discards inbound frames; it exists to process pongs and detect
// disconnects.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("Websocket closed unexpectedly", slog.String("room", c.room), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.hub.logger.Debug("Websocket write failed", slog.String("room", c.room), slog.Any("error", err))
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
