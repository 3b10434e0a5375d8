// Package cartsync keeps every live browser connection of a session in
// step with that session's cart. Each broadcast carries the full cart
// snapshot, never a diff: a client that misses one broadcast recovers
// completely from the next, or by re-reading the cart over HTTP.
package cartsync

import (
	"encoding/json"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/northwear/storefront/pkg/metrics"
	"github.com/northwear/storefront/pkg/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBufferSize = 16
)

// cartMessage is the wire format pushed to clients.
type cartMessage struct {
	Cart []models.CartLine `json:"cart"`
}

// Client is one live websocket connection belonging to a session.
type Client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub

	closeOnce sync.Once
}

// Hub maintains the per-session sets of live connections, sharded so
// sessions hashing to different shards never contend.
type Hub struct {
	shards     []*hubShard
	shardCount uint32

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

type hubShard struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}
}

// NewHub creates a hub with the given shard count.
func NewHub(shardCount int, logger *zap.Logger) *Hub {
	h := &Hub{
		shards:     make([]*hubShard, shardCount),
		shardCount: uint32(shardCount),
		logger:     logger.Named("cartsync"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for i := range h.shards {
		h.shards[i] = &hubShard{sessions: make(map[string]map[*Client]struct{})}
	}
	return h
}

func (h *Hub) shardFor(key string) *hubShard {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))
	return h.shards[hasher.Sum32()%h.shardCount]
}

// Register adds a connection to its session's set. A second tab of the
// same session joins the set without evicting the first.
func (h *Hub) Register(client *Client) {
	sh := h.shardFor(client.sessionID)
	sh.mu.Lock()
	set, ok := sh.sessions[client.sessionID]
	if !ok {
		set = make(map[*Client]struct{})
		sh.sessions[client.sessionID] = set
	}
	set[client] = struct{}{}
	sh.mu.Unlock()

	metrics.WSConnections.Inc()
	h.logger.Debug("client registered", zap.String("session_id", client.sessionID))
}

// Unregister removes a connection; the session entry itself is dropped
// once its set is empty so the registry does not grow without bound.
func (h *Hub) Unregister(client *Client) {
	sh := h.shardFor(client.sessionID)
	sh.mu.Lock()
	if set, ok := sh.sessions[client.sessionID]; ok {
		if _, present := set[client]; present {
			delete(set, client)
			metrics.WSConnections.Dec()
			if len(set) == 0 {
				delete(sh.sessions, client.sessionID)
			}
			client.closeSend()
		}
	}
	sh.mu.Unlock()

	h.logger.Debug("client unregistered", zap.String("session_id", client.sessionID))
}

// BroadcastCart pushes the snapshot to every live connection of the
// session. Delivery is best-effort per connection: a slow client's
// message is dropped and logged without holding up its siblings.
func (h *Hub) BroadcastCart(sessionID string, lines []models.CartLine) {
	if lines == nil {
		lines = []models.CartLine{}
	}
	data, err := json.Marshal(cartMessage{Cart: lines})
	if err != nil {
		h.logger.Error("failed to marshal cart snapshot", zap.Error(err))
		return
	}

	sh := h.shardFor(sessionID)
	sh.mu.RLock()
	for client := range sh.sessions[sessionID] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("dropping snapshot for slow client",
				zap.String("session_id", sessionID))
		}
	}
	sh.mu.RUnlock()

	metrics.CartBroadcasts.Inc()
}

// ConnectionCount returns the number of live connections for a session.
func (h *Hub) ConnectionCount(sessionID string) int {
	sh := h.shardFor(sessionID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.sessions[sessionID])
}

// ServeWS upgrades the request and registers the connection under the
// given session. Identity comes from the session cookie, never from the
// transport itself.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		hub:       h,
	}
	h.Register(client)
	go client.writePump()
	go client.readPump()
}

// Shutdown closes every live connection.
func (h *Hub) Shutdown() {
	for _, sh := range h.shards {
		sh.mu.Lock()
		for sessionID, set := range sh.sessions {
			for client := range set {
				client.conn.Close()
				client.closeSend()
				metrics.WSConnections.Dec()
			}
			delete(sh.sessions, sessionID)
		}
		sh.mu.Unlock()
	}
	h.logger.Info("cart sync hub shut down")
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump consumes control frames until the peer goes away. No
// client-to-server messages are defined on this channel.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends snapshots and heartbeats to the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
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
