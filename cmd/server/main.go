package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Naraveni/DraGuess/internal/archive"
	"github.com/Naraveni/DraGuess/internal/game"
	"github.com/Naraveni/DraGuess/internal/server"
	"github.com/Naraveni/DraGuess/internal/store"
	"github.com/Naraveni/DraGuess/internal/store/redisstore"
	"github.com/Naraveni/DraGuess/internal/utils"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg := server.LoadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	switch cfg.StoreBackend {
	case "redis":
		rs, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			log.Fatal().Err(err).Msg("redis store init failed")
		}
		defer rs.Close()
		st = rs
	case "memory":
		log.Warn().Msg("memory store selected: single-process mode, no cross-instance play")
		st = store.NewMemory()
	default:
		log.Fatal().Str("backend", cfg.StoreBackend).Msg("unknown STORE_BACKEND")
	}

	words := utils.NewWordBank()
	if cfg.WordsCSV != "" {
		var err error
		words, err = utils.NewWordBankFromCSV(cfg.WordsCSV)
		if err != nil {
			log.Fatal().Err(err).Msg("loading words failed")
		}
		log.Info().Str("file", cfg.WordsCSV).Int("words", words.Size()).Msg("word list loaded")
	}

	var opts []game.Option
	var history server.GameHistory
	if cfg.ArchiveDSN != "" {
		pg, err := archive.New(ctx, cfg.ArchiveDSN, log)
		if err != nil {
			log.Fatal().Err(err).Msg("archive init failed")
		}
		defer pg.Close()
		opts = append(opts, game.WithArchiver(pg))
		history = pg
	}

	svc := game.NewService(st, words, log, opts...)
	srv := server.New(cfg, svc, history, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown incomplete")
		}
	}
}
