package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsPair spins up a bare upgrade endpoint and returns matched server-side
// and client-side connections.
type wsPair struct {
	server *websocket.Conn
	client *websocket.Conn
}

func newWsPairs(t *testing.T, n int) []wsPair {
	t.Helper()

	serverSide := make(chan *websocket.Conn, n)
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverSide <- conn
	}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	pairs := make([]wsPair, 0, n)
	for i := 0; i < n; i++ {
		client, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })

		select {
		case server := <-serverSide:
			pairs = append(pairs, wsPair{server: server, client: client})
		case <-time.After(2 * time.Second):
			t.Fatal("server side of the websocket never arrived")
		}
	}
	return pairs
}

func readText(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return data
}

func TestHubJoinLeaveLifecycle(t *testing.T) {
	pairs := newWsPairs(t, 2)
	hub := NewHub()
	a := newClientConn(pairs[0].server)
	b := newClientConn(pairs[1].server)

	assert.Equal(t, 1, hub.Join("r1", a))
	assert.Equal(t, 2, hub.Join("r1", b))
	assert.Equal(t, 2, hub.Count("r1"))
	assert.Zero(t, hub.Count("elsewhere"))

	assert.False(t, hub.Leave("r1", a), "room still has a member")
	assert.True(t, hub.Leave("r1", b), "last leave empties the room")
	assert.Zero(t, hub.Count("r1"))

	// Leaving an unknown room is a no-op.
	assert.False(t, hub.Leave("r1", b))
}

func TestBroadcastSkipsStaleConnection(t *testing.T) {
	pairs := newWsPairs(t, 2)
	hub := NewHub()
	alive := newClientConn(pairs[0].server)
	stale := newClientConn(pairs[1].server)
	go alive.writePump()
	go stale.writePump()

	hub.Join("r1", alive)
	hub.Join("r1", stale)

	// Kill the stale connection underneath the hub.
	require.NoError(t, pairs[1].server.Close())

	hub.BroadcastRaw("r1", []byte(`{"type":"gameStart"}`))
	assert.JSONEq(t, `{"type":"gameStart"}`, string(readText(t, pairs[0].client)))

	// Once the dead member's writer notices the closed socket, the next
	// broadcast evicts it; the live member keeps receiving throughout.
	require.Eventually(t, func() bool {
		hub.BroadcastRaw("r1", []byte(`{"type":"timer","timer":3}`))
		return hub.Count("r1") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSlowReaderDoesNotStallBroadcast(t *testing.T) {
	pairs := newWsPairs(t, 2)
	hub := NewHub()
	alive := newClientConn(pairs[0].server)
	slow := newClientConn(pairs[1].server) // no writer: its buffer never drains
	go alive.writePump()

	hub.Join("r1", alive)
	hub.Join("r1", slow)

	// Flood well past the slow member's buffer. Every broadcast must
	// return promptly; with a blocking write each one could hang for the
	// full write deadline.
	total := sendBuffer + 8
	start := time.Now()
	for i := 0; i < total; i++ {
		hub.BroadcastRaw("r1", []byte(`{"type":"timer","timer":1}`))
		time.Sleep(time.Millisecond)
	}
	require.Less(t, time.Since(start), 2*time.Second, "broadcast stalled on a slow member")

	for i := 0; i < total; i++ {
		readText(t, pairs[0].client)
	}
	// The member that stopped draining was evicted along the way.
	assert.Equal(t, 1, hub.Count("r1"))
}

func TestBroadcastToUnknownRoomIsNoop(t *testing.T) {
	hub := NewHub()
	assert.NotPanics(t, func() {
		hub.BroadcastRaw("nowhere", []byte(`{"type":"timer","timer":3}`))
	})
}
