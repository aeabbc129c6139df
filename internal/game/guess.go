package game

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Naraveni/DraGuess/internal"
	"github.com/Naraveni/DraGuess/internal/store"
)

// SubmitGuess handles one chat line from a player. Chat only exists
// while the game is in play, and the drawer's input stays closed for the
// whole turn; lines from a non-playing room or from the drawer are
// dropped without being stored. Every other non-empty line is stored as
// a message; whether it also scores depends on the moment it lands:
//
//   - a first correct match while the turn is live credits the guesser
//     (timer-scaled points, guessed flag) and the drawer (flat bonus) in
//     the same batch as the marker message, so scoreboard and chat agree
//     in every snapshot;
//   - anything else, including a repeat of the word by someone who
//     already guessed it, is stored verbatim as ordinary chat with no
//     credit.
//
// The correct word never reaches chat history: winning lines are stored
// as the fixed marker text, and the drawer cannot put it there verbatim.
func (s *Service) SubmitGuess(ctx context.Context, roomID string, who Identity, text string) (internal.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return internal.ChatMessage{}, nil
	}

	room, err := s.Room(ctx, roomID)
	if err != nil {
		return internal.ChatMessage{}, err
	}
	if room.Status != internal.StatusPlaying || who.ID == room.DrawerId {
		return internal.ChatMessage{}, nil
	}

	playerDoc, err := s.store.Get(ctx, playerPath(roomID, who.ID))
	if err != nil {
		if isStoreNotFound(err) {
			return internal.ChatMessage{}, ErrNotInRoom
		}
		return internal.ChatMessage{}, err
	}
	var player internal.Player
	if err := store.DataTo(playerDoc, &player); err != nil {
		return internal.ChatMessage{}, err
	}

	correct := room.TurnLive() &&
		!player.HasGuessed &&
		strings.ToLower(text) == room.CurrentWord

	now := s.nowMilli()
	msg := internal.NewChatMessage(uuid.NewString(), player, text, correct, now)
	msgDoc, err := store.DocOf(msg)
	if err != nil {
		return internal.ChatMessage{}, err
	}

	batch := s.store.Batch().
		Set(messagePath(roomID, msg.Id), msgDoc, false).
		Update(roomPath(roomID), map[string]any{"last_active_at": now})

	if correct {
		points := internal.GuessScore(room.Timer)
		batch.
			Update(playerPath(roomID, who.ID), map[string]any{
				"score":       store.Inc(int64(points)),
				"has_guessed": true,
			}).
			Update(playerPath(roomID, room.DrawerId), map[string]any{
				"score": store.Inc(internal.DrawerBonus),
			})
		s.log.Info().
			Str("room_id", roomID).
			Str("player_id", who.ID).
			Int("points", points).
			Int("timer", room.Timer).
			Msg("correct guess")
	}

	if err := batch.Commit(ctx); err != nil {
		return internal.ChatMessage{}, err
	}
	return msg, nil
}
