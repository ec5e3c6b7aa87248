package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"stock-analyzer/internal/markethours"
	"stock-analyzer/internal/ringbuf"
)

// eventHistory bounds how many broadcast envelopes are kept for replay.
const eventHistory = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out signal updates and pipeline run reports to WebSocket
// clients. New clients receive the latest known payload per symbol first.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
	latest  map[string]json.RawMessage // symbol → latest signal payload
	events  *ringbuf.Ring
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*wsClient]bool),
		latest:  make(map[string]json.RawMessage),
		events:  ringbuf.New(eventHistory),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast wraps payload in a typed envelope and sends it to every client.
// Slow clients drop messages rather than block the hub.
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	envelope, err := json.Marshal(map[string]interface{}{
		"type": msgType,
		"data": payload,
		"ts":   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Printf("[api] broadcast marshal: %v", err)
		return
	}
	h.events.Push(envelope)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
		}
	}
}

// BroadcastSignal records the latest payload for a symbol and fans it out.
func (h *Hub) BroadcastSignal(symbol string, payload json.RawMessage) {
	h.mu.Lock()
	h.latest[symbol] = payload
	h.mu.Unlock()
	h.Broadcast("signal", payload)
}

// RecentEvents returns up to n buffered broadcast envelopes, oldest first,
// and the number of envelopes evicted since startup.
func (h *Hub) RecentEvents(n int) ([][]byte, uint64) {
	return h.events.Recent(n), h.events.Dropped()
}

// SignalSource is the subscription surface the hub needs from the cache.
type SignalSource interface {
	SubscribeSignals(ctx context.Context) (*goredis.PubSub, error)
}

// RunSignalRelay pumps the Redis signal channel into the hub until ctx is
// cancelled. Payloads are daily bar JSON; the symbol field keys the
// initial-state cache.
func (h *Hub) RunSignalRelay(ctx context.Context, source SignalSource) {
	for ctx.Err() == nil {
		sub, err := source.SubscribeSignals(ctx)
		if err != nil {
			log.Printf("[api] signal subscribe: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}
		h.pumpSignals(ctx, sub.Channel())
		sub.Close()
	}
}

func (h *Hub) pumpSignals(ctx context.Context, ch <-chan *goredis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var probe struct {
				Symbol string `json:"symbol"`
			}
			if json.Unmarshal([]byte(msg.Payload), &probe) != nil || probe.Symbol == "" {
				continue
			}
			h.BroadcastSignal(probe.Symbol, json.RawMessage(msg.Payload))
		}
	}
}

// StartStatusBroadcast sends a market status envelope to all clients once a
// minute. Blocks until ctx is cancelled.
func (h *Hub) StartStatusBroadcast(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			h.Broadcast("status", map[string]interface{}{
				"market_open":   markethours.IsMarketOpen(now),
				"market_status": markethours.StatusString(now),
				"clients":       h.ClientCount(),
			})
		}
	}
}

// HandleWS upgrades the connection and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] ws upgrade: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[api] ws client connected (%d total)", count)

	go client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

func (h *Hub) removeClient(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// wsClient is a single WebSocket peer.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

func (c *wsClient) sendInitialState() {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	for _, payload := range c.hub.latest {
		envelope, _ := json.Marshal(map[string]interface{}{
			"type":    "signal",
			"data":    payload,
			"initial": true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Coalesce queued messages into one frame.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
		log.Println("[api] ws client disconnected")
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		// Application-level ping for browser clients.
		var base struct {
			Ping int64 `json:"ping"`
		}
		if json.Unmarshal(msg, &base) == nil && base.Ping > 0 {
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"ping":      base.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}
