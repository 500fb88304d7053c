package ws

import "encoding/json"

// Inbound frames are flat JSON objects discriminated by "type". The shapes
// are shared with the web client.

// inboundEnvelope is the first-pass decode used to pick a handler.
type inboundEnvelope struct {
	Type string `json:"type"`
}

// JoinRequest puts the connection into a room, creating it on first use.
type JoinRequest struct {
	Type       string `json:"type"` // "join"
	RoomID     string `json:"roomId"`
	TotalTurns int    `json:"totalTurns,omitempty"`
	GameID     string `json:"gameId,omitempty"`
}

// StartRequest starts the game explicitly.
type StartRequest struct {
	Type   string `json:"type"` // "start"
	RoomID string `json:"roomId"`
}

// TurnEndReport carries a client's result for the current turn. The
// analysis payload is opaque and relayed verbatim.
type TurnEndReport struct {
	Type         string          `json:"type"` // "turnEnd"
	RoomID       string          `json:"roomId"`
	AnalysisData json.RawMessage `json:"analysisData,omitempty"`
}

// RequestTimerRequest arms the countdown in client-gated deployments.
type RequestTimerRequest struct {
	Type   string `json:"type"` // "requestTimer"
	RoomID string `json:"roomId"`
}
