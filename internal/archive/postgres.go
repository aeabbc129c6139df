// Package archive persists finished games to Postgres. It sits entirely
// outside the live game path: the coordination layer works against the
// shared state store alone and hands a result here exactly once, when a
// room ends.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Naraveni/DraGuess/internal/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id           BIGSERIAL PRIMARY KEY,
	room_id      TEXT        NOT NULL,
	winner_name  TEXT        NOT NULL,
	winner_id    TEXT        NOT NULL,
	rounds       INT         NOT NULL,
	leaderboard  JSONB       NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS games_finished_at_idx ON games (finished_at DESC);
`

// PostgresArchive implements game.Archiver on a pgx connection pool.
type PostgresArchive struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// GameRecord is one archived game as read back for history endpoints.
type GameRecord struct {
	RoomID      string                  `json:"room_id"`
	Winner      string                  `json:"winner"`
	WinnerID    string                  `json:"winner_id"`
	Rounds      int                     `json:"rounds"`
	Leaderboard []game.LeaderboardEntry `json:"leaderboard"`
	FinishedAt  time.Time               `json:"finished_at"`
}

// New connects, verifies the connection, and ensures the schema exists.
func New(ctx context.Context, connString string, log zerolog.Logger) (*PostgresArchive, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("archive: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ensure schema: %w", err)
	}
	return &PostgresArchive{
		pool: pool,
		log:  log.With().Str("component", "archive").Logger(),
	}, nil
}

func (a *PostgresArchive) Close() {
	a.pool.Close()
}

// SaveResult records one finished game.
func (a *PostgresArchive) SaveResult(ctx context.Context, result game.ArchivedGame) error {
	leaderboard, err := json.Marshal(game.RankPlayers(result.Leaderboard))
	if err != nil {
		return fmt.Errorf("archive: encode leaderboard: %w", err)
	}

	_, err = a.pool.Exec(ctx,
		`INSERT INTO games (room_id, winner_name, winner_id, rounds, leaderboard, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		result.RoomID, result.Winner, result.WinnerID, result.Rounds, leaderboard, result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("archive: insert game: %w", err)
	}

	a.log.Info().Str("room_id", result.RoomID).Msg("game archived")
	return nil
}

// RecentGames returns the latest archived games, newest first.
func (a *PostgresArchive) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.pool.Query(ctx,
		`SELECT room_id, winner_name, winner_id, rounds, leaderboard, finished_at
		 FROM games ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: query games: %w", err)
	}
	defer rows.Close()

	var records []GameRecord
	for rows.Next() {
		var rec GameRecord
		var leaderboard []byte
		if err := rows.Scan(&rec.RoomID, &rec.Winner, &rec.WinnerID, &rec.Rounds, &leaderboard, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("archive: scan game: %w", err)
		}
		if err := json.Unmarshal(leaderboard, &rec.Leaderboard); err != nil {
			return nil, fmt.Errorf("archive: decode leaderboard: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
