package game

import (
	"context"
	"encoding/json"
)

// Broadcaster delivers one event to every open connection currently joined
// to a room. A room that no longer exists is a silent no-op: callers may
// legitimately race with teardown.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID string, event any)
}

// Presence reports how many connections are currently joined to a room.
type Presence interface {
	Count(roomID string) int
}

// ──────────────────────────── Outbound events ────────────────────────────
// Field names are the wire contract shared with the web client; do not
// rename without a client release.

type GameStartEvent struct {
	Type string `json:"type"` // "gameStart"
}

type TurnEvent struct {
	Type string `json:"type"` // "turn"
	Turn int    `json:"turn"`
}

type TimerEvent struct {
	Type  string `json:"type"` // "timer"
	Timer int    `json:"timer"`
}

type TurnEndEvent struct {
	Type         string          `json:"type"` // "turnEnd"
	TimerExpired bool            `json:"timerExpired,omitempty"`
	Turn         *int            `json:"turn,omitempty"`
	AnalysisData json.RawMessage `json:"analysisData,omitempty"`
}

type GameEndEvent struct {
	Type string `json:"type"` // "gameEnd"
}

func newGameStartEvent() GameStartEvent { return GameStartEvent{Type: "gameStart"} }
func newTurnEvent(turn int) TurnEvent   { return TurnEvent{Type: "turn", Turn: turn} }
func newTimerEvent(left int) TimerEvent { return TimerEvent{Type: "timer", Timer: left} }
func newGameEndEvent() GameEndEvent     { return GameEndEvent{Type: "gameEnd"} }

func newExpiredTurnEndEvent(turn int) TurnEndEvent {
	return TurnEndEvent{Type: "turnEnd", TimerExpired: true, Turn: &turn}
}

func newReportedTurnEndEvent(payload json.RawMessage) TurnEndEvent {
	return TurnEndEvent{Type: "turnEnd", AnalysisData: payload}
}
