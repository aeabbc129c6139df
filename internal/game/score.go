package game

import (
	"context"

	"github.com/Naraveni/DraGuess/internal"
)

// LeaderboardEntry is the ranked scoreboard row shipped to clients.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerId string `json:"player_id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Score    int    `json:"score"`
}

// Leaderboard ranks the room's players. Equal scores share a rank and the
// next distinct score resumes dense numbering (1, 1, 2 rather than
// 1, 1, 3).
func (s *Service) Leaderboard(ctx context.Context, roomID string) ([]LeaderboardEntry, error) {
	players, err := s.Players(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return RankPlayers(players), nil
}

// RankPlayers builds leaderboard rows from an already-loaded registry
// snapshot.
func RankPlayers(players []internal.Player) []LeaderboardEntry {
	sorted := internal.SortPlayers(players)
	entries := make([]LeaderboardEntry, 0, len(sorted))

	rank := 0
	lastScore := 0
	for i, p := range sorted {
		if i == 0 || p.Score != lastScore {
			rank++
			lastScore = p.Score
		}
		entries = append(entries, LeaderboardEntry{
			Rank:     rank,
			PlayerId: p.Id,
			Name:     p.Name,
			Avatar:   p.Avatar,
			Score:    p.Score,
		})
	}
	return entries
}
