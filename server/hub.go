package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Event is the server->client envelope fanned out to room subscribers.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func userRoom(id int64) string    { return fmt.Sprintf("user-%d", id) }
func projectRoom(id int64) string { return fmt.Sprintf("project-%d", id) }

// wsClient is one live connection. Writes go through the buffered send
// channel; the socket writer drains it. A nil reader/writer never touches
// these fields directly.
type wsClient struct {
	id     string
	userID int64
	send   chan []byte
	rooms  map[string]struct{}
}

// Hub owns room membership and the online-user registry. Membership is
// transient, scoped to the connection lifetime, nothing is persisted.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]*wsClient
	rooms   map[string]map[string]struct{}
	// online maps user id to connection id, last writer wins.
	online map[int64]string
	closed bool

	// presence, when set, is invoked outside the hub lock on announce and
	// disconnect so callers can mirror the flag elsewhere.
	presence func(userID int64, online bool)
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[string]*wsClient),
		rooms:   make(map[string]map[string]struct{}),
		online:  make(map[int64]string),
	}
}

func (h *Hub) Register(c *wsClient) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(c.send)
		return
	}
	h.clients[c.id] = c
	h.mu.Unlock()
}

// Unregister drops the connection from all rooms and, if it still owns the
// presence mapping for its user, marks the user offline.
func (h *Hub) Unregister(c *wsClient) {
	var wentOffline int64
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	for room := range c.rooms {
		h.dropFromRoom(room, c.id)
	}
	if c.userID != 0 && h.online[c.userID] == c.id {
		delete(h.online, c.userID)
		wentOffline = c.userID
	}
	close(c.send)
	h.mu.Unlock()

	if wentOffline != 0 {
		h.Publish("", "user-status", map[string]any{"user_id": wentOffline, "status": "offline"})
		if h.presence != nil {
			h.presence(wentOffline, false)
		}
	}
}

// Announce binds the connection to a user, joins the private room and
// broadcasts the online status. A second connection for the same user
// overwrites the mapping.
func (h *Hub) Announce(c *wsClient, userID int64) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	c.userID = userID
	h.online[userID] = c.id
	h.addToRoom(userRoom(userID), c)
	h.mu.Unlock()

	h.Publish("", "user-status", map[string]any{"user_id": userID, "status": "online"})
	if h.presence != nil {
		h.presence(userID, true)
	}
}

func (h *Hub) Join(c *wsClient, room string) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		h.addToRoom(room, c)
	}
	h.mu.Unlock()
}

func (h *Hub) Leave(c *wsClient, room string) {
	h.mu.Lock()
	delete(c.rooms, room)
	h.dropFromRoom(room, c.id)
	h.mu.Unlock()
}

// Publish fans an event out to every connection in the room, or to every
// connection when room is empty. Zero subscribers is a valid silent outcome.
// Slow clients get dropped messages rather than blocking the caller.
func (h *Hub) Publish(room, event string, data any) {
	msg, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		h.log.Error("event marshal", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room == "" {
		for _, c := range h.clients {
			h.deliver(c, msg)
		}
		return
	}
	for id := range h.rooms[room] {
		if c, ok := h.clients[id]; ok {
			h.deliver(c, msg)
		}
	}
}

// IsOnline reports whether a user currently owns a presence mapping.
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.online[userID]
	return ok
}

// Close tears down all connections. The hub accepts no registrations after.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.rooms = make(map[string]map[string]struct{})
	h.online = make(map[int64]string)
}

func (h *Hub) deliver(c *wsClient, msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

// callers hold h.mu
func (h *Hub) addToRoom(room string, c *wsClient) {
	if c.rooms == nil {
		c.rooms = make(map[string]struct{})
	}
	c.rooms[room] = struct{}{}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]struct{})
	}
	h.rooms[room][c.id] = struct{}{}
}

func (h *Hub) dropFromRoom(room, clientID string) {
	if subs, ok := h.rooms[room]; ok {
		delete(subs, clientID)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
}
