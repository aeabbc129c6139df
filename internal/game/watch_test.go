package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Naraveni/DraGuess/internal"
)

// awaitUpdate reads updates until cond holds, failing the test on
// timeout. Intermediate states may be coalesced away, so only the
// condition matters, never the update count.
func awaitUpdate(t *testing.T, ch <-chan RoomUpdate, cond func(RoomUpdate) bool) RoomUpdate {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case update, ok := <-ch:
			require.True(t, ok, "watch closed before the expected state arrived")
			require.NoError(t, update.Room.Validate(), "every observed snapshot must be internally consistent")
			if cond(update) {
				return update
			}
		case <-deadline:
			t.Fatal("no matching update within 2s")
		}
	}
}

func TestWatchUnknownRoom(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Watch(context.Background(), "no-such-room")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestWatchDeliversMergedState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, m := newTestService(t)

	room, err := svc.CreateRoom(ctx, ident(1), internal.VisibilityPublic, 3)
	require.NoError(t, err)

	updates, err := svc.Watch(ctx, room.Id)
	require.NoError(t, err)

	awaitUpdate(t, updates, func(u RoomUpdate) bool {
		return u.Room.Id == room.Id && len(u.Players) == 1
	})

	_, err = svc.Join(ctx, room.Id, ident(2))
	require.NoError(t, err)
	update := awaitUpdate(t, updates, func(u RoomUpdate) bool {
		// The player entry and the count land in one batch; the merged
		// view settles on both.
		return len(u.Players) == 2 && u.Room.PlayerCount == 2
	})

	require.NoError(t, svc.StartGame(ctx, room.Id, ident(1)))
	update = awaitUpdate(t, updates, func(u RoomUpdate) bool {
		return u.Room.Status == internal.StatusPlaying
	})
	drawer := Identity{ID: update.Room.DrawerId}

	require.NoError(t, svc.SelectWord(ctx, room.Id, drawer, "volcano"))
	awaitUpdate(t, updates, func(u RoomUpdate) bool {
		return u.Room.CurrentWord == "volcano"
	})

	_, ok, err := svc.AppendStroke(ctx, room.Id, drawer, line(3), "#000", 2)
	require.NoError(t, err)
	require.True(t, ok)
	awaitUpdate(t, updates, func(u RoomUpdate) bool {
		return len(u.Strokes) == 1
	})

	var guesser Identity
	for _, id := range update.Room.Rotation {
		if id != drawer.ID {
			guesser = Identity{ID: id}
			break
		}
	}
	setTimer(t, m, room.Id, 50)
	_, err = svc.SubmitGuess(ctx, room.Id, guesser, "volcano")
	require.NoError(t, err)

	want := internal.GuessScore(50)
	update = awaitUpdate(t, updates, func(u RoomUpdate) bool {
		if len(u.Messages) != 1 {
			return false
		}
		p, ok := internal.FindPlayer(u.Players, guesser.ID)
		return ok && p.Score == want
	})
	assert.Equal(t, internal.CorrectGuessMarker, update.Messages[0].Text)
}

func TestWatchEndsWhenRoomDeleted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, m := newTestService(t)

	room, err := svc.CreateRoom(ctx, ident(1), internal.VisibilityPublic, 3)
	require.NoError(t, err)

	updates, err := svc.Watch(ctx, room.Id)
	require.NoError(t, err)
	awaitUpdate(t, updates, func(u RoomUpdate) bool { return u.Room.Id == room.Id })

	require.NoError(t, m.Delete(ctx, "rooms/"+room.Id))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch did not close after room deletion")
		}
	}
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	room, err := svc.CreateRoom(ctx, ident(1), internal.VisibilityPublic, 3)
	require.NoError(t, err)
	updates, err := svc.Watch(ctx, room.Id)
	require.NoError(t, err)
	awaitUpdate(t, updates, func(u RoomUpdate) bool { return u.Room.Id == room.Id })

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch did not close after context cancel")
		}
	}
}
