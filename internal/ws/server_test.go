package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnroomgo/internal/services/game"
)

func newSessionServer(t *testing.T) (*httptest.Server, game.IGameService, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	// Client-gated activation keeps the tests free of timer scheduling.
	svc := game.NewGameService(game.Settings{
		TurnSeconds:       15,
		DefaultTotalTurns: 8,
		Activation:        game.ActivationRequest,
	}, clockwork.NewFakeClock(), hub, hub)

	engine := gin.New()
	engine.GET("/ws", NewWsServer(hub, nil, svc).Handle)
	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)
	return ts, svc, hub
}

func dialSession(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestJoinAutoStartsAndRelaysReports(t *testing.T) {
	ts, _, _ := newSessionServer(t)

	a := dialSession(t, ts)
	require.NoError(t, a.WriteJSON(JoinRequest{Type: "join", RoomID: "r1", TotalTurns: 3}))

	// First join auto-starts: the room announces turn 0, no gameStart.
	ev := readEvent(t, a)
	assert.Equal(t, "turn", ev["type"])
	assert.EqualValues(t, 0, ev["turn"])

	b := dialSession(t, ts)
	require.NoError(t, b.WriteJSON(JoinRequest{Type: "join", RoomID: "r1"}))

	// A start after the auto-start loses the latch: no gameStart frame may
	// show up ahead of the relayed report below.
	require.NoError(t, b.WriteJSON(StartRequest{Type: "start", RoomID: "r1"}))
	require.NoError(t, b.WriteJSON(TurnEndReport{
		Type:         "turnEnd",
		RoomID:       "r1",
		AnalysisData: json.RawMessage(`{"sentiment":"positive"}`),
	}))

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, "turnEnd", ev["type"])
		assert.Equal(t, map[string]any{"sentiment": "positive"}, ev["analysisData"])
	}
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	ts, _, _ := newSessionServer(t)

	conn := dialSession(t, ts)
	require.NoError(t, conn.WriteJSON(JoinRequest{Type: "join", RoomID: "r1"}))
	_ = readEvent(t, conn) // turn 0

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json at all{{")))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "unknownThing"}))

	// The connection survives both bad frames and still serves traffic.
	require.NoError(t, conn.WriteJSON(TurnEndReport{
		Type:         "turnEnd",
		RoomID:       "r1",
		AnalysisData: json.RawMessage(`{"ok":true}`),
	}))
	ev := readEvent(t, conn)
	assert.Equal(t, "turnEnd", ev["type"])
}

func TestLastLeaveDestroysRoom(t *testing.T) {
	ts, svc, hub := newSessionServer(t)

	a := dialSession(t, ts)
	b := dialSession(t, ts)
	require.NoError(t, a.WriteJSON(JoinRequest{Type: "join", RoomID: "r1"}))
	_ = readEvent(t, a)
	require.NoError(t, b.WriteJSON(JoinRequest{Type: "join", RoomID: "r1"}))

	require.Eventually(t, func() bool { return hub.Count("r1") == 2 },
		2*time.Second, 5*time.Millisecond)

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return hub.Count("r1") == 1 },
		2*time.Second, 5*time.Millisecond)
	if _, err := svc.GetRoom(context.Background(), "r1"); err != nil {
		t.Fatal("room must survive while a member remains")
	}

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool {
		_, err := svc.GetRoom(context.Background(), "r1")
		return err != nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDisconnectedPeerDoesNotBlockBroadcast(t *testing.T) {
	ts, svc, _ := newSessionServer(t)

	a := dialSession(t, ts)
	b := dialSession(t, ts)
	require.NoError(t, a.WriteJSON(JoinRequest{Type: "join", RoomID: "r1"}))
	_ = readEvent(t, a)
	require.NoError(t, b.WriteJSON(JoinRequest{Type: "join", RoomID: "r1"}))
	require.NoError(t, b.Close())

	require.NoError(t, a.WriteJSON(TurnEndReport{
		Type:         "turnEnd",
		RoomID:       "r1",
		AnalysisData: json.RawMessage(`{"late":"report"}`),
	}))
	ev := readEvent(t, a)
	assert.Equal(t, "turnEnd", ev["type"])

	// State is untouched by relayed reports even with a dead peer around.
	dto, err := svc.GetRoom(context.Background(), "r1")
	require.NoError(t, err)
	assert.Zero(t, dto.Turn)
}
