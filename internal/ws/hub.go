package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub keeps the live connection sets per roomID. It doubles as the local
// broadcast gateway (game.Broadcaster) and as the membership source for
// room DTOs (game.Presence).
type Hub struct {
	rooms sync.Map // roomID -> *room
}

func NewHub() *Hub { return &Hub{} }

// Join adds c to the room's connection set, creating the set on first use,
// and returns the new membership size. Size 1 is the first-connection
// signal the protocol handler uses for auto-start.
func (h *Hub) Join(roomID string, c *clientConn) int {
	v, _ := h.rooms.LoadOrStore(roomID, newRoom())
	return v.(*room).add(c)
}

// Leave removes c from its room and reports whether the room emptied. An
// emptied room is dropped immediately; the caller is expected to tear the
// game state down as well.
func (h *Hub) Leave(roomID string, c *clientConn) bool {
	v, ok := h.rooms.Load(roomID)
	if !ok {
		return false
	}
	if v.(*room).remove(c) == 0 {
		h.rooms.Delete(roomID)
		return true
	}
	return false
}

// Count implements game.Presence.
func (h *Hub) Count(roomID string) int {
	if v, ok := h.rooms.Load(roomID); ok {
		return v.(*room).size()
	}
	return 0
}

// Broadcast implements game.Broadcaster for single-instance deployments.
func (h *Hub) Broadcast(_ context.Context, roomID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		zap.L().Warn("ws.marshal_event", zap.Error(err))
		return
	}
	h.BroadcastRaw(roomID, data)
}

// BroadcastRaw delivers a pre-encoded frame to every member of the room.
// The Redis subscription manager feeds it payloads published by whichever
// instance owns the room's scheduler.
func (h *Hub) BroadcastRaw(roomID string, msg []byte) {
	if v, ok := h.rooms.Load(roomID); ok {
		v.(*room).broadcast(msg)
	}
}
