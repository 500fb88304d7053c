package game

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// startTurnLocked begins the room's current turn: supersede any live
// countdown, reset the clock, announce the turn, and (in auto mode) arm
// the countdown behind the pre-turn delay reserved for client-side
// processing. In request mode the countdown waits for an explicit
// requestTimer event. Caller holds r.mu.
func (svc *gameService) startTurnLocked(ctx context.Context, r *room) {
	svc.cancelCountdownLocked(r)
	r.remaining = svc.cfg.TurnSeconds

	zap.L().Info("game.turn_start",
		zap.String("room", r.id),
		zap.Int("turn", r.turn))
	svc.gateway.Broadcast(ctx, r.id, newTurnEvent(r.turn))

	if svc.cfg.Activation == ActivationAuto {
		svc.armCountdownLocked(r, svc.cfg.PreCountdownDelay)
	}
}

// cancelCountdownLocked revokes the room's live countdown, if any. Bumping
// the generation under r.mu is what makes cancellation synchronous: a tick
// that already fired checks the generation under the same lock and finds
// itself stale. Caller holds r.mu.
func (svc *gameService) cancelCountdownLocked(r *room) {
	r.timerGen++
	if r.timerStop != nil {
		r.timerStop()
		r.timerStop = nil
	}
}

// armCountdownLocked starts the room's single countdown process. Caller
// holds r.mu and must have cancelled any previous countdown first.
func (svc *gameService) armCountdownLocked(r *room, delay time.Duration) {
	// The countdown outlives the client request that triggered it.
	runCtx, stop := context.WithCancel(context.Background())
	r.timerStop = stop
	go svc.runCountdown(runCtx, r.id, r.timerGen, delay)
}

func (svc *gameService) runCountdown(ctx context.Context, roomID string, gen uint64, delay time.Duration) {
	if delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-svc.clock.After(delay):
		}
	}

	if !svc.announceCountdown(ctx, roomID, gen) {
		return
	}

	ticker := svc.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !svc.tick(ctx, roomID, gen) {
				return
			}
		}
	}
}

// announceCountdown broadcasts the initial timer event with the full
// countdown value. It reports false when the countdown was superseded or
// the room deleted while the pre-turn delay elapsed.
func (svc *gameService) announceCountdown(ctx context.Context, roomID string, gen uint64) bool {
	r := svc.room(roomID)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timerGen != gen {
		return false
	}
	svc.gateway.Broadcast(ctx, roomID, newTimerEvent(r.remaining))
	return true
}

// tick applies one per-second decrement and reports whether the countdown
// should keep running. The room lock is held for the whole of the state
// mutation and the associated broadcasts.
func (svc *gameService) tick(ctx context.Context, roomID string, gen uint64) bool {
	r := svc.room(roomID)
	if r == nil {
		// Room deleted mid-countdown; the tick degrades to nothing.
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timerGen != gen {
		return false
	}

	r.remaining--
	svc.gateway.Broadcast(ctx, roomID, newTimerEvent(r.remaining))
	if r.remaining > 0 {
		return true
	}

	// Turn over. This countdown is finished either way.
	svc.cancelCountdownLocked(r)
	finished := r.turn
	zap.L().Info("game.turn_expired",
		zap.String("room", roomID),
		zap.Int("turn", finished))
	svc.gateway.Broadcast(ctx, roomID, newExpiredTurnEndEvent(finished))

	r.turn++
	if r.turn >= r.totalTurns {
		r.status = StatusEnded
		zap.L().Info("game.ended",
			zap.String("room", roomID),
			zap.Int("turns", r.turn))
		svc.gateway.Broadcast(ctx, roomID, newGameEndEvent())
		return false
	}

	svc.startTurnLocked(ctx, r)
	return false
}
