package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	StatusIdle    = "idle"
	StatusRunning = "running"
	StatusEnded   = "ended"
)

// Activation selects how a turn's countdown is armed: automatically after
// the pre-turn delay, or only when a client asks for it.
type Activation string

const (
	ActivationAuto    Activation = "auto"
	ActivationRequest Activation = "request"
)

var ErrRoomNotFound = errors.New("room not found")

type RoomDTO struct {
	ID               string `json:"id"`
	GameID           string `json:"game_id,omitempty"`
	Turn             int    `json:"turn"`
	TotalTurns       int    `json:"total_turns"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Status           string `json:"status" example:"running"`
	Clients          int    `json:"clients"`
}

type Settings struct {
	TurnSeconds       int
	PreCountdownDelay time.Duration
	DefaultTotalTurns int
	Activation        Activation
}

type IGameService interface {
	Join(ctx context.Context, roomID string, totalTurns int, gameID string, first bool)
	Start(ctx context.Context, roomID string)
	RequestTimer(ctx context.Context, roomID string)
	ReportTurnResult(ctx context.Context, roomID string, payload json.RawMessage)
	DestroyRoom(roomID string)
	GetRoom(ctx context.Context, roomID string) (*RoomDTO, error)
	ListRooms(ctx context.Context, status string) []RoomDTO
}

// room is one game session. Every mutation happens under mu; the countdown
// generation counter is bumped under the same lock, so a tick that already
// fired but has not locked the room yet becomes a no-op once its countdown
// is superseded or the room is torn down.
type room struct {
	mu sync.Mutex

	id         string
	gameID     string
	turn       int
	totalTurns int
	remaining  int
	status     string

	timerGen  uint64
	timerStop context.CancelFunc
}

type gameService struct {
	mu    sync.RWMutex
	rooms map[string]*room

	cfg      Settings
	clock    clockwork.Clock
	gateway  Broadcaster
	presence Presence
}

var _ IGameService = (*gameService)(nil)

func NewGameService(cfg Settings, clock clockwork.Clock, gateway Broadcaster, presence Presence) IGameService {
	return &gameService{
		rooms:    make(map[string]*room),
		cfg:      cfg,
		clock:    clock,
		gateway:  gateway,
		presence: presence,
	}
}

// Join creates the room on first use and, when first is set, performs the
// first-connection auto-start. Auto-start deliberately skips the gameStart
// broadcast; only an explicit start event announces it.
func (svc *gameService) Join(ctx context.Context, roomID string, totalTurns int, gameID string, first bool) {
	if totalTurns <= 0 {
		totalTurns = svc.cfg.DefaultTotalTurns
	}

	svc.mu.Lock()
	r, ok := svc.rooms[roomID]
	if !ok {
		r = &room{
			id:         roomID,
			gameID:     gameID,
			totalTurns: totalTurns,
			remaining:  svc.cfg.TurnSeconds,
			status:     StatusIdle,
		}
		svc.rooms[roomID] = r
		zap.L().Info("game.room_created",
			zap.String("room", roomID),
			zap.Int("total_turns", totalTurns))
	}
	svc.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if first && r.status == StatusIdle {
		r.status = StatusRunning
		svc.startTurnLocked(ctx, r)
	}
}

// Start handles the explicit start event. The status field is the latch:
// whichever of auto-start and explicit start gets the lock first wins and
// the other is a no-op, so gameStart is never broadcast twice.
func (svc *gameService) Start(ctx context.Context, roomID string) {
	r := svc.room(roomID)
	if r == nil {
		zap.L().Debug("game.start_no_room", zap.String("room", roomID))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusIdle {
		return
	}
	r.status = StatusRunning
	zap.L().Info("game.started", zap.String("room", roomID))
	svc.gateway.Broadcast(ctx, roomID, newGameStartEvent())
	svc.startTurnLocked(ctx, r)
}

// RequestTimer arms the countdown for the current turn on a client's
// request. A second request for the same turn supersedes the live
// countdown and restarts from the full duration.
func (svc *gameService) RequestTimer(ctx context.Context, roomID string) {
	if svc.cfg.Activation != ActivationRequest {
		zap.L().Debug("game.request_timer_ignored", zap.String("room", roomID))
		return
	}
	r := svc.room(roomID)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRunning {
		return
	}
	svc.cancelCountdownLocked(r)
	r.remaining = svc.cfg.TurnSeconds
	svc.armCountdownLocked(r, 0)
}

// ReportTurnResult relays a client-submitted result for the current turn.
// The payload is opaque and the broadcast is purely informational: the
// timer-driven transition is the only path that advances the turn.
func (svc *gameService) ReportTurnResult(ctx context.Context, roomID string, payload json.RawMessage) {
	r := svc.room(roomID)
	if r == nil {
		zap.L().Debug("game.report_no_room", zap.String("room", roomID))
		return
	}
	if len(payload) == 0 {
		return
	}
	svc.gateway.Broadcast(ctx, roomID, newReportedTurnEndEvent(payload))
}

// DestroyRoom drops the room's state and revokes its countdown. Once this
// returns no tick for the room can have any further effect.
func (svc *gameService) DestroyRoom(roomID string) {
	svc.mu.Lock()
	r, ok := svc.rooms[roomID]
	delete(svc.rooms, roomID)
	svc.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	svc.cancelCountdownLocked(r)
	r.mu.Unlock()
	zap.L().Info("game.room_deleted", zap.String("room", roomID))
}

func (svc *gameService) GetRoom(_ context.Context, roomID string) (*RoomDTO, error) {
	r := svc.room(roomID)
	if r == nil {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrRoomNotFound)
	}
	dto := svc.dto(r)
	return &dto, nil
}

func (svc *gameService) ListRooms(_ context.Context, status string) []RoomDTO {
	svc.mu.RLock()
	rooms := make([]*room, 0, len(svc.rooms))
	for _, r := range svc.rooms {
		rooms = append(rooms, r)
	}
	svc.mu.RUnlock()

	list := make([]RoomDTO, 0, len(rooms))
	for _, r := range rooms {
		dto := svc.dto(r)
		if status != "" && dto.Status != status {
			continue
		}
		list = append(list, dto)
	}
	return list
}

func (svc *gameService) room(roomID string) *room {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.rooms[roomID]
}

func (svc *gameService) dto(r *room) RoomDTO {
	r.mu.Lock()
	dto := RoomDTO{
		ID:               r.id,
		GameID:           r.gameID,
		Turn:             r.turn,
		TotalTurns:       r.totalTurns,
		RemainingSeconds: r.remaining,
		Status:           r.status,
	}
	r.mu.Unlock()
	dto.Clients = svc.presence.Count(dto.ID)
	return dto
}
