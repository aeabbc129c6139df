package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Naraveni/DraGuess/internal"
	"github.com/Naraveni/DraGuess/internal/store"
	"github.com/Naraveni/DraGuess/internal/utils"
)

// Identity is the session-scoped participant identity handed to us by the
// (out of scope) anonymous login bootstrap.
type Identity struct {
	ID   string
	Name string
}

// Archiver persists finished games. Optional; with a nil archiver ended
// rooms simply remain in the store.
type Archiver interface {
	SaveResult(ctx context.Context, result ArchivedGame) error
}

// ArchivedGame is the durable record of one finished room. Winner is the
// display name shown to players; WinnerID keeps the stable identity.
type ArchivedGame struct {
	RoomID      string
	Winner      string
	WinnerID    string
	Rounds      int
	Leaderboard []internal.Player
	FinishedAt  time.Time
}

// Service is a client-side handle over the shared state store: every
// mutation it performs is one the legitimate actor (host, drawer, or
// guesser) would issue, and all cross-client coordination happens through
// the store, never in process memory.
type Service struct {
	store   store.Store
	words   *utils.WordBank
	log     zerolog.Logger
	archive Archiver
	now     func() time.Time

	// per-room stroke write limiter and timestamp monotonic guard
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastTS   map[string]int64
}

type Option func(*Service)

func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// WithClock is test plumbing: freezes "now" for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, words *utils.WordBank, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		words:    words,
		log:      log.With().Str("component", "game").Logger(),
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
		lastTS:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WordChoices hands the drawer exactly three distinct candidates.
func (s *Service) WordChoices() []string {
	return s.words.Choices(internal.WordChoiceCount)
}

func (s *Service) nowMilli() int64 {
	return s.now().UnixMilli()
}

// --- store paths ---

func roomPath(roomID string) string {
	return store.Join("rooms", roomID)
}

func playersPath(roomID string) string {
	return store.Join("rooms", roomID, "players")
}

func playerPath(roomID, playerID string) string {
	return store.Join("rooms", roomID, "players", playerID)
}

func strokesPath(roomID string) string {
	return store.Join("rooms", roomID, "strokes")
}

func strokePath(roomID, strokeID string) string {
	return store.Join("rooms", roomID, "strokes", strokeID)
}

func messagesPath(roomID string) string {
	return store.Join("rooms", roomID, "messages")
}

func messagePath(roomID, messageID string) string {
	return store.Join("rooms", roomID, "messages", messageID)
}

// --- snapshot loaders ---

// Room loads the room document, mapping absence to ErrRoomNotFound.
func (s *Service) Room(ctx context.Context, roomID string) (internal.Room, error) {
	doc, err := s.store.Get(ctx, roomPath(roomID))
	if err != nil {
		if isStoreNotFound(err) {
			return internal.Room{}, ErrRoomNotFound
		}
		return internal.Room{}, err
	}
	var room internal.Room
	if err := store.DataTo(doc, &room); err != nil {
		return internal.Room{}, err
	}
	return room, nil
}

// Players returns the registry snapshot in presentation order
// (score-descending, stable).
func (s *Service) Players(ctx context.Context, roomID string) ([]internal.Player, error) {
	snaps, err := s.store.Query(ctx, playersPath(roomID))
	if err != nil {
		return nil, err
	}
	players := make([]internal.Player, 0, len(snaps))
	for _, snap := range snaps {
		var p internal.Player
		if err := store.DataTo(snap.Data, &p); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return internal.SortPlayers(players), nil
}

// Strokes returns the stroke log in replay order.
func (s *Service) Strokes(ctx context.Context, roomID string) ([]internal.Stroke, error) {
	snaps, err := s.store.Query(ctx, strokesPath(roomID))
	if err != nil {
		return nil, err
	}
	strokes := make([]internal.Stroke, 0, len(snaps))
	for _, snap := range snaps {
		var st internal.Stroke
		if err := store.DataTo(snap.Data, &st); err != nil {
			return nil, err
		}
		strokes = append(strokes, st)
	}
	return internal.SortStrokes(strokes), nil
}

// Messages returns chat history in display order.
func (s *Service) Messages(ctx context.Context, roomID string) ([]internal.ChatMessage, error) {
	snaps, err := s.store.Query(ctx, messagesPath(roomID))
	if err != nil {
		return nil, err
	}
	messages := make([]internal.ChatMessage, 0, len(snaps))
	for _, snap := range snaps {
		var m internal.ChatMessage
		if err := store.DataTo(snap.Data, &m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return internal.SortMessages(messages), nil
}

func isStoreNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
