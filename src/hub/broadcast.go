package hub

import (
	"github.com/jonerickson/tui-chat/src/protocol"
	"github.com/jonerickson/tui-chat/src/types"
)

// broadcastToRoom delivers an envelope to every member of room except
// excludeID. A room with no members is a silent no-op. One member's failure
// never aborts delivery to the rest; a full or closed send buffer means the
// peer is not draining its connection and is treated as a transport failure.
func (h *Hub) broadcastToRoom(room string, env types.Envelope, excludeID string) {
	data, err := protocol.Encode(env)
	if err != nil {
		h.logger.Error().Err(err).Str("room", room).Msg("broadcast encode failed")
		return
	}

	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Client, 0, len(members))
	for id := range members {
		if id == excludeID {
			continue
		}
		if c, ok := h.clients[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	var failed []*Client
	for _, c := range targets {
		if !c.trySend(data) {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.logger.Warn().Str("client_id", c.ID).Str("room", room).Msg("send buffer full, disconnecting")
		h.removeClient(c)
	}
}

// sendToClient unicasts an envelope to a single connection.
func (h *Hub) sendToClient(connID string, env types.Envelope) bool {
	data, err := protocol.Encode(env)
	if err != nil {
		h.logger.Error().Err(err).Str("client_id", connID).Msg("unicast encode failed")
		return false
	}

	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if !c.trySend(data) {
		h.logger.Warn().Str("client_id", connID).Msg("send buffer full, disconnecting")
		h.removeClient(c)
		return false
	}
	return true
}
