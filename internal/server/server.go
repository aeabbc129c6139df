package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Naraveni/DraGuess/internal/archive"
	"github.com/Naraveni/DraGuess/internal/game"
)

// GameHistory reads back archived games for the history endpoint.
type GameHistory interface {
	RecentGames(ctx context.Context, limit int) ([]archive.GameRecord, error)
}

type Server struct {
	cfg     Config
	svc     *game.Service
	history GameHistory
	log     zerolog.Logger

	http *http.Server
}

// New wires the HTTP surface over the game service. history may be nil
// when archiving is disabled.
func New(cfg Config, svc *game.Service, history GameHistory, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		history: history,
		log:     log.With().Str("component", "server").Logger(),
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  time.Minute,
		WriteTimeout: 0, // websocket connections write for the room's lifetime
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("listening")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
