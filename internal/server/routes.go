package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Naraveni/DraGuess/internal"
	"github.com/Naraveni/DraGuess/internal/game"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)

	// OPTIONS is routed too so preflight requests reach the CORS
	// middleware instead of the method-not-allowed handler.
	r.HandleFunc("/rooms", s.CreateRoomHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms-available", s.GetRoomsToJoin).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/random", s.JoinRandomHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{roomId}/join", s.JoinRoomHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{roomId}/leaderboard", s.LeaderboardHandler).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/games/recent", s.RecentGamesHandler).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/ws/{roomId}", s.HandleWebSocket)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		// Websocket upgrades skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type joinRequest struct {
	PlayerId string `json:"player_id"`
	Name     string `json:"name"`
}

type createRoomRequest struct {
	joinRequest
	Visibility string `json:"visibility"`
	MaxRounds  int    `json:"max_rounds"`
}

type joinResponse struct {
	Room     internal.Room `json:"room"`
	PlayerId string        `json:"player_id"`
}

// identity fills in what the client left blank: a generated id for
// first-time visitors, a placeholder name.
func identity(req joinRequest) game.Identity {
	if req.PlayerId == "" {
		req.PlayerId = uuid.NewString()
	}
	if req.Name == "" {
		req.Name = "Anonymous"
	}
	return game.Identity{ID: req.PlayerId, Name: req.Name}
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	visibility := internal.VisibilityPublic
	if req.Visibility == string(internal.VisibilityPrivate) {
		visibility = internal.VisibilityPrivate
	}

	who := identity(req.joinRequest)
	room, err := s.svc.CreateRoom(r.Context(), who, visibility, req.MaxRounds)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, joinResponse{Room: room, PlayerId: who.ID})
}

func (s *Server) GetRoomsToJoin(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.svc.OpenRooms(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) JoinRandomHandler(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	who := identity(req)
	room, err := s.svc.JoinRandom(r.Context(), who)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, joinResponse{Room: room, PlayerId: who.ID})
}

func (s *Server) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	who := identity(req)
	room, err := s.svc.JoinByCode(r.Context(), mux.Vars(r)["roomId"], who)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, joinResponse{Room: room, PlayerId: who.ID})
}

func (s *Server) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Leaderboard(r.Context(), mux.Vars(r)["roomId"])
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) RecentGamesHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "game history is not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.history.RecentGames(r.Context(), limit)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encoding response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// serviceError maps game-layer failures onto status codes: precondition
// rejections are the client's fault, everything else is ours.
func (s *Server) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrPreconditionFailed):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
