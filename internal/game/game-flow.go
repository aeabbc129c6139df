package game

import (
	"context"
	"strings"

	"github.com/Naraveni/DraGuess/internal"
)

// StartGame moves a WAITING room into its first turn. Host-only; the room
// needs at least two players so there is always someone to guess.
func (s *Service) StartGame(ctx context.Context, roomID string, who Identity) error {
	room, err := s.Room(ctx, roomID)
	if err != nil {
		return err
	}
	if who.ID != room.HostId {
		return ErrNotHost
	}
	if room.Status != internal.StatusWaiting {
		return ErrNotWaiting
	}

	players, err := s.Players(ctx, roomID)
	if err != nil {
		return err
	}
	if len(players) < internal.MinPlayersToStart {
		return ErrTooFewPlayers
	}

	s.log.Info().
		Str("room_id", roomID).
		Int("players", len(players)).
		Msg("game starting")
	return s.nextTurn(ctx, room, 1)
}

// EndTurn resolves a finished turn: advance to the next drawer, roll into
// the next round when the rotation is exhausted, or finish the game after
// the final round. Called by the host clock on timer expiry; a room no
// longer playing makes it a no-op so duplicate expiry ticks are harmless.
func (s *Service) EndTurn(ctx context.Context, roomID string) error {
	room, err := s.Room(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Status != internal.StatusPlaying {
		return nil
	}

	if internal.IsLastInRotation(room.Rotation, room.DrawerId) {
		if room.CurrentRound >= room.MaxRounds {
			return s.finishGame(ctx, room)
		}
		return s.nextTurn(ctx, room, room.CurrentRound+1)
	}
	return s.nextTurn(ctx, room, 0)
}

// SelectWord records the drawer's pick for the live turn, lowercased so
// guess matching is case-insensitive at both ends. One pick per turn.
func (s *Service) SelectWord(ctx context.Context, roomID string, who Identity, word string) error {
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
	if room.CurrentWord != "" {
		return ErrWordAlreadySet
	}

	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return ErrWordNotSet
	}

	return s.store.Update(ctx, roomPath(roomID), map[string]any{
		"current_word":   word,
		"last_active_at": s.nowMilli(),
	})
}

// nextTurn is the single transition that begins every turn. One batch
// carries the whole reset, so no observer ever sees the new drawer with
// the previous turn's canvas or guess flags:
//
//   - every stroke document is deleted (fresh canvas),
//   - every player's has_guessed flag drops back to false,
//   - the room document gets the new drawer, a full timer, and a cleared
//     word.
//
// newRound > 0 opens a round: the rotation is re-snapshotted from live
// scores and the new head draws first. newRound == 0 stays inside the
// current round, handing the turn to the next slot of the rotation
// snapshot taken when the round began.
func (s *Service) nextTurn(ctx context.Context, room internal.Room, newRound int) error {
	rotation := room.Rotation
	round := room.CurrentRound
	var drawer string

	if newRound > 0 {
		players, err := s.Players(ctx, room.Id)
		if err != nil {
			return err
		}
		rotation = internal.RotationOf(players)
		round = newRound
		drawer = rotation[0]
	} else {
		drawer = internal.NextDrawer(rotation, room.DrawerId)
	}

	strokes, err := s.store.Query(ctx, strokesPath(room.Id))
	if err != nil {
		return err
	}
	players, err := s.store.Query(ctx, playersPath(room.Id))
	if err != nil {
		return err
	}

	batch := s.store.Batch()
	for _, snap := range strokes {
		batch.Delete(snap.Path)
	}
	for _, snap := range players {
		batch.Update(snap.Path, map[string]any{"has_guessed": false})
	}
	batch.Update(roomPath(room.Id), map[string]any{
		"status":         string(internal.StatusPlaying),
		"current_round":  round,
		"drawer_id":      drawer,
		"current_word":   "",
		"timer":          internal.TurnSeconds,
		"rotation":       rotation,
		"last_active_at": s.nowMilli(),
	})
	if err := batch.Commit(ctx); err != nil {
		return err
	}

	s.log.Info().
		Str("room_id", room.Id).
		Str("drawer_id", drawer).
		Int("round", round).
		Msg("turn started")
	return nil
}

// finishGame closes the room after the final turn: status ENDED, the
// leader recorded as winner, turn fields cleared. The archive write is
// best effort; a dead archive must not strand the room in PLAYING.
func (s *Service) finishGame(ctx context.Context, room internal.Room) error {
	players, err := s.Players(ctx, room.Id)
	if err != nil {
		return err
	}

	// The winner field carries the display name; scoreboards and the
	// archive keep the id alongside.
	var winner, winnerID string
	if top, ok := internal.TopPlayer(players); ok {
		winner = top.Name
		winnerID = top.Id
	}

	err = s.store.Update(ctx, roomPath(room.Id), map[string]any{
		"status":         string(internal.StatusEnded),
		"drawer_id":      "",
		"current_word":   "",
		"timer":          0,
		"winner":         winner,
		"last_active_at": s.nowMilli(),
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("room_id", room.Id).
		Str("winner", winner).
		Msg("game over")

	if s.archive != nil {
		result := ArchivedGame{
			RoomID:      room.Id,
			Winner:      winner,
			WinnerID:    winnerID,
			Rounds:      room.MaxRounds,
			Leaderboard: players,
			FinishedAt:  s.now(),
		}
		if err := s.archive.SaveResult(ctx, result); err != nil {
			s.log.Error().
				Str("room_id", room.Id).
				Err(err).
				Msg("archiving game result failed")
		}
	}
	return nil
}
