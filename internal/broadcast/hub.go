// Package broadcast delivers change events to connected subscribers
// over websockets. Two groups exist: the authenticated live group and
// the public group. Delivery is fire-and-forget from the engine's
// perspective; a slow or broken subscriber never stalls ingestion.
package broadcast

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Subscriber groups.
const (
	GroupLive   = "live"
	GroupPublic = "public"
)

const (
	// Per-client send buffer; events beyond it are dropped for that
	// client rather than blocking the publisher.
	clientBuffer = 100

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser dashboard and the mobile app connect cross-origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one websocket subscriber.
type client struct {
	id    string
	group string
	conn  *websocket.Conn
	send  chan []byte
	once  sync.Once
}

// Hub manages subscriber registration and group fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	dropped uint64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		done:    make(chan struct{}),
	}
}

// ServeWS upgrades an HTTP request to a websocket subscription in the
// given group and services it until the peer disconnects.
func (h *Hub) ServeWS(group string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("broadcast: upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	c := &client{
		id:    uuid.NewString(),
		group: group,
		conn:  conn,
		send:  make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	log.Printf("broadcast: client %s connected to group %s", c.id, group)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		h.writePump(c)
	}()
	go func() {
		defer h.wg.Done()
		h.readPump(c)
	}()
}

// Publish sends a payload to every client in the group. Clients whose
// buffers are full have the event dropped; the error reports only
// marshal failures, never delivery problems.
func (h *Hub) Publish(group string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast payload: %w", err)
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.group == group {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case <-h.done:
			return nil
		case c.send <- data:
		default:
			// Slow client: drop this event for it and move on.
			h.mu.Lock()
			h.dropped++
			h.mu.Unlock()
		}
	}
	return nil
}

// GroupSize returns the number of connected clients in a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, c := range h.clients {
		if c.group == group {
			n++
		}
	}
	return n
}

// Dropped returns the number of events dropped to slow clients.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// writePump drains the client's send channel onto the wire and keeps
// the connection alive with pings.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.disconnect(c)
	}()

	for {
		select {
		case <-h.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
				time.Now().Add(writeWait))
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump discards inbound frames (subscribers do not talk back) and
// notices disconnects.
func (h *Hub) readPump(c *client) {
	defer h.disconnect(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// disconnect unregisters a client and closes its resources once.
func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	_, registered := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})

	if registered {
		log.Printf("broadcast: client %s disconnected from group %s", c.id, c.group)
	}
}

// Stop disconnects all clients and waits for their pumps to exit.
func (h *Hub) Stop() {
	close(h.done)

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.disconnect(c)
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		// Pumps stuck on a dead peer; the process is exiting anyway.
	}
}
