package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"arenaserver/internal/snapshot"
)

// MaxSpectatorConnectionsTotal bounds the whole dashboard fan-out; it's a
// read-only convenience feed, not a path any player input travels.
const MaxSpectatorConnectionsTotal = 200

// MaxSpectatorConnectionsPerIP caps one IP's share of that total.
const MaxSpectatorConnectionsPerIP = 5

var spectatorUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if IsAllowedOrigin(origin) {
			return true
		}
		log.Printf("spectator: rejected connection from origin %q", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

type spectatorClient struct {
	conn *websocket.Conn
	ip   string
}

// SpectatorHub fans out the latest per-world snapshot to read-only
// dashboard clients. Clients never send input; the only message direction
// is server to client, mirroring the teacher's broadcast-hub shape applied
// to a non-authoritative viewer feed (SPEC_FULL §8).
type SpectatorHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*spectatorClient

	limiter *WebSocketRateLimiter
}

// NewSpectatorHub creates an empty hub.
func NewSpectatorHub() *SpectatorHub {
	return &SpectatorHub{
		clients: make(map[*websocket.Conn]*spectatorClient),
		limiter: NewWebSocketRateLimiter(MaxSpectatorConnectionsPerIP),
	}
}

type spectatorMessage struct {
	WorldID  string            `json:"world_id"`
	Snapshot snapshot.Snapshot `json:"snapshot"`
}

// Broadcast implements engine.SpectatorSink: it sends worldID's latest
// snapshot to every connected spectator, dropping any connection that can't
// keep up rather than blocking the tick pipeline.
func (h *SpectatorHub) Broadcast(worldID string, snap snapshot.Snapshot) {
	h.mu.RLock()
	if len(h.clients) == 0 {
		h.mu.RUnlock()
		return
	}
	clients := make([]*spectatorClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	data, err := json.Marshal(spectatorMessage{WorldID: worldID, Snapshot: snap})
	if err != nil {
		return
	}

	for _, c := range clients {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c.conn)
			continue
		}
		IncrementSpectatorMessages()
	}
}

func (h *SpectatorHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if c, ok := h.clients[conn]; ok {
		h.limiter.Release(c.ip)
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()
	UpdateSpectatorConnections(count)
}

// ClientCount returns the number of connected spectators.
func (h *SpectatorHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades a spectator connection and holds it open until
// the client disconnects; spectators never need to send anything, so the
// read loop exists only to notice the connection closing.
func (h *SpectatorHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	h.mu.RLock()
	total := len(h.clients)
	h.mu.RUnlock()
	if total >= MaxSpectatorConnectionsTotal {
		RecordConnectionRejected("ws_limit")
		http.Error(w, "too many spectators", http.StatusServiceUnavailable)
		return
	}
	if !h.limiter.Allow(ip) {
		RecordConnectionRejected("ws_limit")
		http.Error(w, "too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := spectatorUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.limiter.Release(ip)
		return
	}

	client := &spectatorClient{conn: conn, ip: ip}
	h.mu.Lock()
	h.clients[conn] = client
	count := len(h.clients)
	h.mu.Unlock()
	UpdateSpectatorConnections(count)

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
