package internal

import (
	"slices"
	"strings"
)

// NewChatMessage builds the stored record for a guess or chat line. A
// correct guess is stored with the fixed marker text instead of the word.
func NewChatMessage(id string, sender Player, text string, correct bool, ts int64) ChatMessage {
	if correct {
		text = CorrectGuessMarker
	}
	return ChatMessage{
		Id:            id,
		SchemaVersion: SchemaVersion,
		SenderId:      sender.Id,
		SenderName:    sender.Name,
		Text:          text,
		IsCorrect:     correct,
		Timestamp:     ts,
	}
}

// SortMessages orders chat history for display: ascending timestamp,
// stable for same-millisecond sends.
func SortMessages(messages []ChatMessage) []ChatMessage {
	out := slices.Clone(messages)
	slices.SortStableFunc(out, func(a, b ChatMessage) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return strings.Compare(a.Id, b.Id)
		}
	})
	return out
}
