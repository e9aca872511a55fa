package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 10 * 1024 * 1024 // 10MB limit for audio chunks
	inboundBuffer  = 64
)

// Hub tracks the connected call clients
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Inbound chan []byte // raw client messages, consumed by one worker in order
	UserID  string
	CallID  string

	closeOnce sync.Once
	done      chan struct{}
}

// Message is the envelope for every frame exchanged on a call socket
type Message struct {
	Type            string          `json:"type"`
	Content         string          `json:"content,omitempty"`
	AudioDataBase64 string          `json:"audio_data_base64,omitempty"`
	MimeType        string          `json:"mime_type,omitempty"`
	ChunkIndex      int             `json:"chunk_index,omitempty"`
	CallID          string          `json:"call_id,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "user_id", client.UserID, "call_id", client.CallID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "user_id", client.UserID, "call_id", client.CallID)
		}
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID string) *Client {
	client := &Client{
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Inbound: make(chan []byte, inboundBuffer),
		UserID:  userID,
		CallID:  uuid.New().String(),
		done:    make(chan struct{}),
	}

	h.register <- client
	return client
}

// ReadPump forwards frames to Inbound until the socket closes, then closes Inbound
func (c *Client) ReadPump() {
	defer func() {
		close(c.Inbound)
		c.Hub.unregister <- c
		c.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err, "call_id", c.CallID)
			}
			return
		}
		select {
		case c.Inbound <- messageBytes:
		case <-c.done:
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// one JSON frame per message
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues msg for the write pump; false when the client is gone or backed up
func (c *Client) SendMessage(msg Message) (sent bool) {
	if msg.CallID == "" {
		msg.CallID = c.CallID
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal message", "error", err, "call_id", c.CallID)
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			// Send was closed by the hub
			sent = false
		}
	}()
	select {
	case c.Send <- b:
		return true
	default:
		slog.Warn("Failed to send message - client channel full", "call_id", c.CallID, "type", msg.Type)
		return false
	}
}

// Close closes the underlying connection once
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.Conn.Close()
	})
}
