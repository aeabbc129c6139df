package game

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Naraveni/DraGuess/internal"
	"github.com/Naraveni/DraGuess/internal/store"
)

// HostClock is the single writer of a room's countdown. Exactly one runs
// per room, on the host's connection: every second it decrements the
// timer document field and, on expiry, resolves the turn. Non-host
// clients only ever read the timer.
type HostClock struct {
	svc    *Service
	roomID string
	log    zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Service) NewHostClock(roomID string) *HostClock {
	return &HostClock{
		svc:    s,
		roomID: roomID,
		log:    s.log.With().Str("room_id", roomID).Str("component", "host_clock").Logger(),
	}
}

// Start launches the tick loop. Idempotent: a second Start while the loop
// runs does nothing, so a reconnecting host cannot double the tick rate.
func (c *HostClock) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Stop cancels the loop and waits for the in-flight tick to finish.
func (c *HostClock) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *HostClock) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stop := c.tick(ctx); stop {
				return
			}
		}
	}
}

// tick advances the countdown by one second. Store errors are logged and
// retried on the next tick rather than killing the clock; a transient
// outage must not freeze the game.
func (c *HostClock) tick(ctx context.Context) (stop bool) {
	room, err := c.svc.Room(ctx, c.roomID)
	if err != nil {
		c.log.Error().Err(err).Msg("timer tick: room read failed")
		return false
	}

	switch room.Status {
	case internal.StatusEnded:
		return true
	case internal.StatusPlaying:
	default:
		return false
	}

	if room.Timer <= 0 {
		if err := c.svc.EndTurn(ctx, c.roomID); err != nil {
			c.log.Error().Err(err).Msg("timer expiry: end turn failed")
		}
		return false
	}

	err = c.svc.store.Update(ctx, roomPath(c.roomID), map[string]any{
		"timer": store.Inc(-1),
	})
	if err != nil {
		c.log.Error().Err(err).Msg("timer tick: decrement failed")
	}
	return false
}
