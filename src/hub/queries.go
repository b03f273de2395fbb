package hub

import "sort"

// Read-side queries for the operator console and tests. Safe to call from
// any goroutine.

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Rooms returns room slugs with their member counts.
func (h *Hub) Rooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make(map[string]int, len(h.rooms))
	for room, members := range h.rooms {
		result[room] = len(members)
	}
	return result
}

// MembersOf returns the sorted connection IDs occupying a room.
func (h *Hub) MembersOf(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.rooms[room]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoomOf returns the room a connection currently occupies, if any.
func (h *Hub) RoomOf(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	if !ok || c.state != stateActive {
		return "", false
	}
	return c.Room, true
}
