// ABOUTME: In-memory room registry for live websocket connections
// ABOUTME: Concurrency-safe join/leave/relay keyed by conversation id

package gateway

import (
	"log/slog"
	"sync"
)

// Hub is the registry of conversation rooms. A room is the set of live
// connections currently subscribed to one conversation's events; it is
// distinct from the persisted conversation. One mutex guards both the
// room sets and each client's joined-set, so a disconnect racing a relay
// never observes a half-removed connection.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	logger *slog.Logger
}

// NewHub creates an empty hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger.With("component", "hub"),
	}
}

// Join adds the client to the room's membership set and records the room
// in the client's joined-set.
func (h *Hub) Join(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
	c.rooms[roomID] = struct{}{}

	h.logger.Debug("client joined room",
		"room_id", roomID,
		"connection_id", c.id,
		"user_id", c.userID)
}

// Leave removes the client from one room.
func (h *Hub) Leave(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(roomID, c)
}

// RemoveClient removes the client from every room it joined. Called on
// disconnect; no persisted state is touched.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range c.rooms {
		h.removeLocked(roomID, c)
	}
}

func (h *Hub) removeLocked(roomID string, c *Client) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c)
	delete(c.rooms, roomID)

	// Drop empty room entries
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Relay delivers a frame to every connection currently a member of the
// room, the sender's own connection included. Membership is snapshotted
// under the read lock; sends happen outside it and are non-blocking, so
// a slow connection drops frames rather than stalling the room.
func (h *Hub) Relay(roomID string, frame []byte) {
	h.mu.RLock()
	members, ok := h.rooms[roomID]
	if !ok || len(members) == 0 {
		h.mu.RUnlock()
		return
	}

	targets := make([]*Client, 0, len(members))
	for c := range members {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(frame) {
			h.logger.Debug("dropped frame for slow connection",
				"room_id", roomID,
				"connection_id", c.id)
		}
	}
}

// RoomSize returns the current number of connections in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
