package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// sendBuffer frames per connection; a member whose buffer fills up is not
// draining and gets evicted rather than stalling the room.
const sendBuffer = 32

// clientConn owns one websocket connection. All outbound traffic goes
// through the buffered send channel and a single writer goroutine
// (writePump), so broadcasters never touch the socket and a slow peer
// cannot delay anyone else.
type clientConn struct {
	id      string
	rawConn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// roomID is set when the join event is handled and read during
	// teardown; both happen on the connection's reader goroutine.
	roomID string
}

func newClientConn(raw *websocket.Conn) *clientConn {
	return &clientConn{
		id:      uuid.NewString(),
		rawConn: raw,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

// close is idempotent; reader teardown and broadcast eviction can race.
func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.rawConn.Close()
	})
}

// enqueue hands a frame to the writer without blocking. False means the
// connection is closed or its buffer is full; the caller treats it as
// stale.
func (c *clientConn) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// writePump is the connection's only writer: it drains the send buffer
// and keeps the peer alive with pings. It exits on close() or on the
// first failed write.
func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if c.rawConn.WriteMessage(websocket.TextMessage, msg) != nil {
				return
			}
		case <-ticker.C:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if c.rawConn.WriteMessage(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}
