package game

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Naraveni/DraGuess/internal"
	"github.com/Naraveni/DraGuess/internal/store"
)

const (
	// strokeRate caps how many stroke documents a drawer can push per
	// second. Over-limit strokes are dropped, not queued; the drawing
	// degrades to coarser segments instead of flooding the store.
	strokeRate  = rate.Limit(20)
	strokeBurst = 40
)

// AppendStroke persists one drawn segment. Only the current drawer may
// draw, and only once their word is picked; anything else is rejected
// before touching the store.
//
// Timestamps are forced strictly monotonic per room, so replay order is
// total even when two strokes land within the same millisecond. ok is
// false when the stroke was dropped (rate limit, or fewer than two
// usable points after validation).
func (s *Service) AppendStroke(ctx context.Context, roomID string, who Identity, points []internal.Point, color string, width float64) (internal.Stroke, bool, error) {
	room, err := s.Room(ctx, roomID)
	if err != nil {
		return internal.Stroke{}, false, err
	}
	if room.Status != internal.StatusPlaying {
		return internal.Stroke{}, false, ErrNotPlaying
	}
	if who.ID != room.DrawerId {
		return internal.Stroke{}, false, ErrNotDrawer
	}
	if room.CurrentWord == "" {
		return internal.Stroke{}, false, ErrWordNotSet
	}

	points = internal.ValidPoints(points)
	if len(points) < 2 {
		return internal.Stroke{}, false, nil
	}
	if !s.limiterFor(roomID).Allow() {
		s.log.Debug().Str("room_id", roomID).Msg("stroke dropped by rate limit")
		return internal.Stroke{}, false, nil
	}

	stroke := internal.Stroke{
		Id:            uuid.NewString(),
		SchemaVersion: internal.SchemaVersion,
		Points:        points,
		Color:         color,
		Width:         width,
		Timestamp:     s.nextStrokeTS(roomID),
	}
	doc, err := store.DocOf(stroke)
	if err != nil {
		return internal.Stroke{}, false, err
	}
	if err := s.store.Set(ctx, strokePath(roomID, stroke.Id), doc, false); err != nil {
		return internal.Stroke{}, false, err
	}
	return stroke, true, nil
}

// ClearStrokes wipes the canvas mid-turn at the drawer's request. One
// batch, so watchers never see a half-cleared canvas.
func (s *Service) ClearStrokes(ctx context.Context, roomID string, who Identity) error {
	room, err := s.Room(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Status != internal.StatusPlaying {
		return ErrNotPlaying
	}
	if who.ID != room.DrawerId {
		return ErrNotDrawer
	}

	strokes, err := s.store.Query(ctx, strokesPath(roomID))
	if err != nil {
		return err
	}
	if len(strokes) == 0 {
		return nil
	}

	batch := s.store.Batch()
	for _, snap := range strokes {
		batch.Delete(snap.Path)
	}
	return batch.Commit(ctx)
}

func (s *Service) limiterFor(roomID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[roomID]
	if !ok {
		lim = rate.NewLimiter(strokeRate, strokeBurst)
		s.limiters[roomID] = lim
	}
	return lim
}

// nextStrokeTS returns wall-clock millis bumped past the last timestamp
// issued for the room.
func (s *Service) nextStrokeTS(roomID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.nowMilli()
	if last := s.lastTS[roomID]; ts <= last {
		ts = last + 1
	}
	s.lastTS[roomID] = ts
	return ts
}

// StrokeBatcher accumulates pen movement and flushes it as stroke
// documents: a full document every MaxStrokePoints points, the remainder
// on pen-up. Consecutive flushes repeat the boundary point so the drawn
// line stays visually continuous.
type StrokeBatcher struct {
	svc    *Service
	roomID string
	who    Identity
	color  string
	width  float64
	points []internal.Point
}

func (s *Service) NewStrokeBatcher(roomID string, who Identity, color string, width float64) *StrokeBatcher {
	return &StrokeBatcher{
		svc:    s,
		roomID: roomID,
		who:    who,
		color:  color,
		width:  width,
	}
}

// Add records one pen position, flushing when the document cap is hit.
func (b *StrokeBatcher) Add(ctx context.Context, p internal.Point) error {
	b.points = append(b.points, p)
	if len(b.points) < internal.MaxStrokePoints {
		return nil
	}
	last := b.points[len(b.points)-1]
	if err := b.flush(ctx); err != nil {
		return err
	}
	b.points = append(b.points, last)
	return nil
}

// End flushes the pending tail on pen-up.
func (b *StrokeBatcher) End(ctx context.Context) error {
	return b.flush(ctx)
}

func (b *StrokeBatcher) flush(ctx context.Context) error {
	if len(b.points) < 2 {
		b.points = b.points[:0]
		return nil
	}
	_, _, err := b.svc.AppendStroke(ctx, b.roomID, b.who, b.points, b.color, b.width)
	b.points = b.points[:0]
	return err
}
