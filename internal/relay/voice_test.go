package relay

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newVoiceServer(t *testing.T) (*httptest.Server, *VoiceRelay) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	relay := NewVoiceRelay()
	engine := gin.New()
	engine.GET("/voice", relay.Handle)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, relay
}

func dialVoice(t *testing.T, srv *httptest.Server, group string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/voice?group=" + group
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func requireSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no frame on this connection")
}

func TestVoiceFanoutReachesGroupButNotSender(t *testing.T) {
	srv, _ := newVoiceServer(t)

	speaker := dialVoice(t, srv, "g1")
	listener := dialVoice(t, srv, "g1")

	// Join is processed on the server before the first frame can fan out,
	// but the two dials above may still be racing; give them a beat.
	time.Sleep(50 * time.Millisecond)

	frame := []byte{0x01, 0x02, 0x03}
	require.NoError(t, speaker.WriteMessage(websocket.BinaryMessage, frame))

	require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, got, err := listener.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, mt)
	require.Equal(t, frame, got)

	requireSilent(t, speaker)
}

func TestVoiceFanoutStaysWithinGroup(t *testing.T) {
	srv, _ := newVoiceServer(t)

	speaker := dialVoice(t, srv, "g1")
	outsider := dialVoice(t, srv, "g2")
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, speaker.WriteMessage(websocket.BinaryMessage, []byte("pcm")))

	requireSilent(t, outsider)
}

func TestVoiceLeaveDropsEmptyGroup(t *testing.T) {
	srv, relay := newVoiceServer(t)

	conn := dialVoice(t, srv, "g1")
	time.Sleep(50 * time.Millisecond)
	conn.Close()

	require.Eventually(t, func() bool {
		relay.mu.RLock()
		defer relay.mu.RUnlock()
		_, ok := relay.groups["g1"]
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}
