package internal

import (
	"fmt"
	"slices"
	"strings"
)

// SortPlayers orders a registry snapshot the way every consumer presents
// it: score descending, ties broken by original insertion order
// (JoinedAt ascending, then id for same-millisecond joins). The sort is
// stable by construction of the comparator.
func SortPlayers(players []Player) []Player {
	out := slices.Clone(players)
	slices.SortStableFunc(out, func(a, b Player) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		if a.JoinedAt != b.JoinedAt {
			if a.JoinedAt < b.JoinedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Id, b.Id)
	})
	return out
}

// RotationOf snapshots the drawer rotation for a new round: player ids in
// score-descending registry order at this instant. The snapshot is stored
// on the room document so turn order stays put while scores move.
func RotationOf(players []Player) []string {
	sorted := SortPlayers(players)
	ids := make([]string, 0, len(sorted))
	for _, p := range sorted {
		ids = append(ids, p.Id)
	}
	return ids
}

// TopPlayer returns the current leader, using the same ordering contract
// as SortPlayers. ok is false for an empty registry.
func TopPlayer(players []Player) (Player, bool) {
	if len(players) == 0 {
		return Player{}, false
	}
	return SortPlayers(players)[0], true
}

func FindPlayer(players []Player, id string) (Player, bool) {
	for _, p := range players {
		if p.Id == id {
			return p, true
		}
	}
	return Player{}, false
}

// AvatarURL derives the decorative avatar for a player id. No behavioral
// contract; the seed keeps it stable across sessions.
func AvatarURL(playerID string) string {
	return fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", playerID)
}
