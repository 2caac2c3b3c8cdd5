// Package wsserver is the public WebSocket transport: a Hub of connected
// clients, each with its own topic subscription set, fed by Publish calls
// from the broadcast pump.
package wsserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // CORS handled at the mux layer
}

const (
	pingInterval = 25 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 256
)

// Hub tracks connected clients and routes published topic frames to every
// client subscribed to that topic.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{clients: make(map[*client]bool), log: log}
}

// Publish implements broadcast.Publisher: fan a pre-encoded frame out to
// every client subscribed to topic.
func (h *Hub) Publish(topic string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.isSubscribed(topic) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			// client's buffer is full; drop rather than block the hub
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// client is one upgraded connection with its own subscription set.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subsMu sync.RWMutex
	subs   map[string]bool
}

func (c *client) isSubscribed(topic string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subs[topic]
}

func (c *client) subscribe(topic string) {
	c.subsMu.Lock()
	c.subs[topic] = true
	c.subsMu.Unlock()
}

func (c *client) unsubscribe(topic string) {
	c.subsMu.Lock()
	delete(c.subs, topic)
	c.subsMu.Unlock()
}

type controlFrame struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
}

type controlReply struct {
	OK           bool   `json:"ok"`
	Subscribed   string `json:"subscribed,omitempty"`
	Unsubscribed string `json:"unsubscribed,omitempty"`
	Error        string `json:"error,omitempty"`
	Hello        string `json:"hello,omitempty"`
	Path         string `json:"path,omitempty"`
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame controlFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.replyJSON(controlReply{OK: false, Error: "invalid_json"})
			continue
		}

		switch frame.Op {
		case "subscribe":
			c.subscribe(frame.Topic)
			c.replyJSON(controlReply{OK: true, Subscribed: frame.Topic})
		case "unsubscribe":
			c.unsubscribe(frame.Topic)
			c.replyJSON(controlReply{OK: true, Unsubscribed: frame.Topic})
		default:
			c.replyJSON(controlReply{OK: false, Error: "unknown_op"})
		}
	}
}

func (c *client) replyJSON(reply controlReply) {
	b, err := json.Marshal(reply)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Upgrade promotes an HTTP request to a tracked WebSocket client and starts
// its read/write pumps.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.log != nil {
			h.log.Warn("ws upgrade failed", zap.Error(err))
		}
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), subs: make(map[string]bool)}
	h.register(c)

	hello, _ := json.Marshal(controlReply{OK: true, Hello: "degenter-ws", Path: "/ws"})
	select {
	case c.send <- hello:
	default:
	}

	go c.writePump()
	go c.readPump()
}
