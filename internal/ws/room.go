package ws

import (
	"sync"
)

// room is the connection set of one game session. Membership only; turn
// state belongs to the game service.
type room struct {
	mu    sync.RWMutex
	conns map[*clientConn]struct{}
}

func newRoom() *room { return &room{conns: map[*clientConn]struct{}{}} }

func (r *room) add(c *clientConn) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
	return len(r.conns)
}

func (r *room) remove(c *clientConn) int {
	r.mu.Lock()
	delete(r.conns, c)
	n := len(r.conns)
	r.mu.Unlock()
	c.close()
	return n
}

func (r *room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// broadcast enqueues msg for every member; the per-connection writers do
// the socket I/O, so this returns without ever blocking on a peer. A
// member that cannot take the frame is stale, not an error: it is
// evicted and the remaining members still get the message.
func (r *room) broadcast(msg []byte) {
	// Take a quick snapshot of the current connections
	r.mu.RLock()
	conns := make([]*clientConn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	var stale []*clientConn
	for _, c := range conns {
		if !c.enqueue(msg) {
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		r.remove(c)
	}
}
