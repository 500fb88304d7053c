package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// roomChannel is the pub/sub channel carrying a room's event stream.
func roomChannel(roomID string) string { return "room:" + roomID + ":events" }

// Publisher implements game.Broadcaster by routing every room event
// through Redis, so the hubs of all instances deliver it — including the
// hub of the instance that owns the room's scheduler.
type Publisher struct {
	rdc *redis.Client
}

func NewPublisher(rdc *redis.Client) *Publisher { return &Publisher{rdc: rdc} }

func (p *Publisher) Broadcast(ctx context.Context, roomID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		zap.L().Warn("ws.marshal_event", zap.Error(err))
		return
	}

	// The event is already decided even if the countdown that produced it
	// was cancelled right after; publish must not inherit that cancel.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.rdc.Publish(ctx, roomChannel(roomID), data).Err(); err != nil {
		zap.L().Warn("ws.publish",
			zap.String("room", roomID),
			zap.Error(err))
	}
}
