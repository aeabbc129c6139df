package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Naraveni/DraGuess/internal"
	"github.com/Naraveni/DraGuess/internal/game"
	"github.com/Naraveni/DraGuess/internal/store"
	"github.com/Naraveni/DraGuess/internal/utils"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc := game.NewService(store.NewMemory(), utils.NewWordBank(), zerolog.Nop())
	return New(Config{Port: 0}, svc, nil, zerolog.Nop())
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoute(t *testing.T) {
	handler := newTestServer(t).RegisterRoutes()

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoomLifecycleRoutes(t *testing.T) {
	handler := newTestServer(t).RegisterRoutes()

	rec := doJSON(t, handler, http.MethodPost, "/rooms", map[string]any{
		"name":       "Ana",
		"visibility": "public",
		"max_rounds": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created joinResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotEmpty(t, created.Room.Id)
	assert.NotEmpty(t, created.PlayerId, "an omitted player id is generated server-side")
	assert.Equal(t, internal.StatusWaiting, created.Room.Status)
	assert.Equal(t, 2, created.Room.MaxRounds)

	rec = doJSON(t, handler, http.MethodGet, "/rooms-available", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var available []internal.Room
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&available))
	require.Len(t, available, 1)
	assert.Equal(t, created.Room.Id, available[0].Id)

	rec = doJSON(t, handler, http.MethodPost, "/rooms/"+created.Room.Id+"/join", map[string]any{
		"player_id": "friend-1",
		"name":      "Ben",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var joined joinResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&joined))
	assert.Equal(t, 2, joined.Room.PlayerCount)

	rec = doJSON(t, handler, http.MethodGet, "/rooms/"+created.Room.Id+"/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []game.LeaderboardEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	assert.Len(t, entries, 2)
}

func TestJoinRandomRoute(t *testing.T) {
	handler := newTestServer(t).RegisterRoutes()

	rec := doJSON(t, handler, http.MethodPost, "/rooms/random", map[string]any{"name": "Solo"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp joinResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, internal.VisibilityPublic, resp.Room.Visibility,
		"no open rooms: matchmaking founds a public one")
}

func TestRouteErrors(t *testing.T) {
	handler := newTestServer(t).RegisterRoutes()

	rec := doJSON(t, handler, http.MethodPost, "/rooms/no-such-room/join", map[string]any{"name": "X"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/games/recent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "history disabled without an archive")

	req := httptest.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString("{not json"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestServer(t).RegisterRoutes()

	req := httptest.NewRequest(http.MethodOptions, "/rooms", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
