package game

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Naraveni/DraGuess/internal"
	"github.com/Naraveni/DraGuess/internal/store"
)

// newRoomCode derives a short shareable invite code. Six hex characters
// keep codes typeable; uniqueness is good enough for a live-room
// namespace.
func newRoomCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

// CreateRoom writes a fresh WAITING room and its host player entry in one
// batch, so no observer ever sees a room without its host.
func (s *Service) CreateRoom(ctx context.Context, who Identity, visibility internal.RoomVisibility, maxRounds int) (internal.Room, error) {
	if maxRounds < 1 {
		maxRounds = internal.DefaultMaxRounds
	}
	now := s.nowMilli()

	room := internal.Room{
		Id:            newRoomCode(),
		SchemaVersion: internal.SchemaVersion,
		Status:        internal.StatusWaiting,
		Visibility:    visibility,
		CurrentRound:  0,
		MaxRounds:     maxRounds,
		Timer:         0,
		HostId:        who.ID,
		PlayerCount:   1,
		MaxPlayers:    internal.MaxPlayersPerRoom,
		LastActiveAt:  now,
	}
	host := internal.Player{
		Id:            who.ID,
		SchemaVersion: internal.SchemaVersion,
		Name:          who.Name,
		Avatar:        internal.AvatarURL(who.ID),
		IsHost:        true,
		JoinedAt:      now,
	}

	roomDoc, err := store.DocOf(room)
	if err != nil {
		return internal.Room{}, err
	}
	hostDoc, err := store.DocOf(host)
	if err != nil {
		return internal.Room{}, err
	}

	err = s.store.Batch().
		Set(roomPath(room.Id), roomDoc, false).
		Set(playerPath(room.Id, who.ID), hostDoc, false).
		Commit(ctx)
	if err != nil {
		return internal.Room{}, err
	}

	s.log.Info().
		Str("room_id", room.Id).
		Str("host_id", who.ID).
		Str("visibility", string(visibility)).
		Msg("room created")
	return room, nil
}

// Join adds who to the room's player registry. Re-joining is an idempotent
// upsert: the existing entry (score, host flag, join time) is kept and the
// player count is not touched, which is what keeps the host from being
// counted twice after creating and then connecting.
func (s *Service) Join(ctx context.Context, roomID string, who Identity) (internal.Room, error) {
	room, err := s.Room(ctx, roomID)
	if err != nil {
		return internal.Room{}, err
	}

	if _, err := s.store.Get(ctx, playerPath(roomID, who.ID)); err == nil {
		return room, nil
	} else if !isStoreNotFound(err) {
		return internal.Room{}, err
	}

	if room.Status != internal.StatusWaiting {
		return internal.Room{}, ErrNotWaiting
	}
	if room.IsFull() {
		return internal.Room{}, ErrRoomFull
	}

	now := s.nowMilli()
	player := internal.Player{
		Id:            who.ID,
		SchemaVersion: internal.SchemaVersion,
		Name:          who.Name,
		Avatar:        internal.AvatarURL(who.ID),
		JoinedAt:      now,
	}
	playerDoc, err := store.DocOf(player)
	if err != nil {
		return internal.Room{}, err
	}

	err = s.store.Batch().
		Set(playerPath(roomID, who.ID), playerDoc, false).
		Update(roomPath(roomID), map[string]any{
			"player_count":   store.Inc(1),
			"last_active_at": now,
		}).
		Commit(ctx)
	if err != nil {
		return internal.Room{}, err
	}

	s.log.Info().
		Str("room_id", roomID).
		Str("player_id", who.ID).
		Msg("player joined")

	room.PlayerCount++
	room.LastActiveAt = now
	return room, nil
}

// JoinByCode resolves a private invite: same as Join, the code IS the
// room id.
func (s *Service) JoinByCode(ctx context.Context, code string, who Identity) (internal.Room, error) {
	return s.Join(ctx, code, who)
}

// JoinRandom is matchmaking: among public rooms still waiting for players
// it picks the most-full one (lowest id on ties, so concurrent seekers
// converge on the same room), and falls back to creating a fresh public
// room when none qualify.
func (s *Service) JoinRandom(ctx context.Context, who Identity) (internal.Room, error) {
	candidates, err := s.OpenRooms(ctx)
	if err != nil {
		return internal.Room{}, err
	}

	var best *internal.Room
	for i := range candidates {
		room := &candidates[i]
		if best == nil ||
			room.PlayerCount > best.PlayerCount ||
			(room.PlayerCount == best.PlayerCount && room.Id < best.Id) {
			best = room
		}
	}

	if best != nil {
		joined, err := s.Join(ctx, best.Id, who)
		if err == nil {
			return joined, nil
		}
		// Lost the race for the last seat; fall through to a fresh room.
		s.log.Debug().
			Str("room_id", best.Id).
			Err(err).
			Msg("matchmaking pick rejected, creating room")
	}

	return s.CreateRoom(ctx, who, internal.VisibilityPublic, internal.DefaultMaxRounds)
}

// OpenRooms lists the public rooms a matchmaking seeker may enter.
func (s *Service) OpenRooms(ctx context.Context) ([]internal.Room, error) {
	snaps, err := s.store.Query(ctx, "rooms",
		store.Where("status", string(internal.StatusWaiting)),
		store.Where("visibility", string(internal.VisibilityPublic)),
	)
	if err != nil {
		return nil, err
	}

	rooms := make([]internal.Room, 0, len(snaps))
	for _, snap := range snaps {
		var room internal.Room
		if err := store.DataTo(snap.Data, &room); err != nil {
			return nil, err
		}
		if room.IsFull() {
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
