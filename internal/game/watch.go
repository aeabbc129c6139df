package game

import (
	"context"
	"time"

	"github.com/Naraveni/DraGuess/internal"
	"github.com/Naraveni/DraGuess/internal/store"
)

// RoomUpdate is one merged view of everything a client renders: the room
// document plus the three collections, each in presentation order. Every
// update carries full state, never a delta, so a consumer can always
// redraw from the latest update alone.
type RoomUpdate struct {
	Room     internal.Room
	Players  []internal.Player
	Strokes  []internal.Stroke
	Messages []internal.ChatMessage
}

const (
	watchBackoffMin = 250 * time.Millisecond
	watchBackoffMax = 5 * time.Second
)

// Watch follows a room until ctx is cancelled or the room document is
// deleted, merging the four store feeds into one update stream. The
// returned channel holds one slot and coalesces: a slow consumer skips
// intermediate states and always reads the newest.
//
// A lost subscription is handled inside: back off, resubscribe, and push
// a full snapshot, since changes during the gap are unobservable.
func (s *Service) Watch(ctx context.Context, roomID string) (<-chan RoomUpdate, error) {
	// Fail fast on a room that never existed.
	if _, err := s.Room(ctx, roomID); err != nil {
		return nil, err
	}

	out := make(chan RoomUpdate, 1)
	go s.watchLoop(ctx, roomID, out)
	return out, nil
}

func (s *Service) watchLoop(ctx context.Context, roomID string, out chan RoomUpdate) {
	defer close(out)
	log := s.log.With().Str("room_id", roomID).Str("component", "watch").Logger()

	backoff := watchBackoffMin
	for {
		gone, err := s.watchSession(ctx, roomID, out)
		if ctx.Err() != nil || gone {
			return
		}
		if err != nil {
			log.Warn().Err(err).Dur("backoff", backoff).Msg("subscription lost, resubscribing")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > watchBackoffMax {
			backoff = watchBackoffMax
		}
	}
}

// watchSession runs one set of subscriptions until a feed dies. gone is
// true when the room document was deleted, which ends the watch for good.
func (s *Service) watchSession(ctx context.Context, roomID string, out chan RoomUpdate) (gone bool, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	roomCh, cancelRoom, err := s.store.SubscribeDoc(ctx, roomPath(roomID))
	if err != nil {
		return false, err
	}
	defer cancelRoom()
	playersCh, cancelPlayers, err := s.store.SubscribeCollection(ctx, playersPath(roomID))
	if err != nil {
		return false, err
	}
	defer cancelPlayers()
	strokesCh, cancelStrokes, err := s.store.SubscribeCollection(ctx, strokesPath(roomID))
	if err != nil {
		return false, err
	}
	defer cancelStrokes()
	messagesCh, cancelMessages, err := s.store.SubscribeCollection(ctx, messagesPath(roomID))
	if err != nil {
		return false, err
	}
	defer cancelMessages()

	var state RoomUpdate
	for {
		select {
		case <-ctx.Done():
			return false, nil

		case doc, ok := <-roomCh:
			if !ok {
				return false, store.ErrSubscriptionLost
			}
			if doc == nil {
				return true, nil
			}
			var room internal.Room
			if err := store.DataTo(doc, &room); err != nil {
				return false, err
			}
			state.Room = room

		case snaps, ok := <-playersCh:
			if !ok {
				return false, store.ErrSubscriptionLost
			}
			players, err := decodePlayers(snaps)
			if err != nil {
				return false, err
			}
			state.Players = players

		case snaps, ok := <-strokesCh:
			if !ok {
				return false, store.ErrSubscriptionLost
			}
			strokes, err := decodeStrokes(snaps)
			if err != nil {
				return false, err
			}
			state.Strokes = strokes

		case snaps, ok := <-messagesCh:
			if !ok {
				return false, store.ErrSubscriptionLost
			}
			messages, err := decodeMessages(snaps)
			if err != nil {
				return false, err
			}
			state.Messages = messages
		}

		// Skip the window before the room doc's initial snapshot lands.
		if state.Room.Id == "" {
			continue
		}
		push(out, state)
	}
}

// push delivers latest-wins: replace a pending unread update rather than
// block on the consumer.
func push(out chan RoomUpdate, u RoomUpdate) {
	for {
		select {
		case out <- u:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}

func decodePlayers(snaps []store.Snapshot) ([]internal.Player, error) {
	players := make([]internal.Player, 0, len(snaps))
	for _, snap := range snaps {
		var p internal.Player
		if err := store.DataTo(snap.Data, &p); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return internal.SortPlayers(players), nil
}

func decodeStrokes(snaps []store.Snapshot) ([]internal.Stroke, error) {
	strokes := make([]internal.Stroke, 0, len(snaps))
	for _, snap := range snaps {
		var st internal.Stroke
		if err := store.DataTo(snap.Data, &st); err != nil {
			return nil, err
		}
		strokes = append(strokes, st)
	}
	return internal.SortStrokes(strokes), nil
}

func decodeMessages(snaps []store.Snapshot) ([]internal.ChatMessage, error) {
	messages := make([]internal.ChatMessage, 0, len(snaps))
	for _, snap := range snaps {
		var m internal.ChatMessage
		if err := store.DataTo(snap.Data, &m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return internal.SortMessages(messages), nil
}
