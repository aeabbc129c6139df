package archive_test

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Naraveni/DraGuess/internal"
	"github.com/Naraveni/DraGuess/internal/archive"
	"github.com/Naraveni/DraGuess/internal/game"
)

var pg *archive.PostgresArchive

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testusername"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	pg, err = archive.New(ctx, connString, zerolog.Nop())
	if err != nil {
		panic(err)
	}

	code := m.Run()

	pg.Close()
	_ = postgresContainer.Terminate(ctx)
	os.Exit(code)
}

func TestPostgresArchive(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()

	finished := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	result := game.ArchivedGame{
		RoomID:   "room-1",
		Winner:   "Ana",
		WinnerID: "player-01",
		Rounds:   3,
		Leaderboard: []internal.Player{
			{Id: "player-01", Name: "Ana", Score: 900, JoinedAt: 1},
			{Id: "player-02", Name: "Ben", Score: 350, JoinedAt: 2},
		},
		FinishedAt: finished,
	}

	t.Run("SaveResult", func(t *testing.T) {
		require.NoError(t, pg.SaveResult(ctx, result))

		later := result
		later.RoomID = "room-2"
		later.Winner = "Ben"
		later.WinnerID = "player-02"
		later.FinishedAt = finished.Add(time.Hour)
		require.NoError(t, pg.SaveResult(ctx, later))
	})

	t.Run("RecentGames", func(t *testing.T) {
		records, err := pg.RecentGames(ctx, 10)
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "room-2", records[0].RoomID, "newest first")
		assert.Equal(t, "room-1", records[1].RoomID)

		first := records[1]
		assert.Equal(t, "Ana", first.Winner)
		assert.Equal(t, "player-01", first.WinnerID)
		assert.Equal(t, 3, first.Rounds)
		require.Len(t, first.Leaderboard, 2)
		assert.Equal(t, 1, first.Leaderboard[0].Rank)
		assert.Equal(t, 900, first.Leaderboard[0].Score)
		assert.True(t, first.FinishedAt.Equal(finished))
	})

	t.Run("RecentGamesLimit", func(t *testing.T) {
		records, err := pg.RecentGames(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}
