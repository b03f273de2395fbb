package hub

// Room directory operations. Rooms exist only while they have members:
// created lazily on first join, deleted when the last member leaves.
// Callers hold h.mu.

// joinRoomLocked inserts the client into room's member set, first removing
// it from any prior room so a connection never resides in two rooms at once.
func (h *Hub) joinRoomLocked(c *Client, room string) {
	if c.Room != "" && c.Room != room {
		h.leaveRoomLocked(c.ID, c.Room)
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]bool)
		h.rooms[room] = members
		h.logger.Info().Str("room", room).Msg("room created")
	}
	members[c.ID] = true
}

// leaveRoomLocked removes connID from room's member set, deleting the room
// once its membership is empty.
func (h *Hub) leaveRoomLocked(connID, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
		h.logger.Info().Str("room", room).Msg("room removed")
	}
}
