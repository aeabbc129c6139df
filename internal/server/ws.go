package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Naraveni/DraGuess/internal"
	"github.com/Naraveni/DraGuess/internal/game"
	"github.com/Naraveni/DraGuess/internal/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Envelope is the framing for every websocket message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// roomStateView is the outbound room snapshot. It mirrors game.RoomUpdate
// except that the current word is masked for everyone but the drawer.
type roomStateView struct {
	Room     internal.Room          `json:"room"`
	Players  []internal.Player      `json:"players"`
	Strokes  []internal.Stroke      `json:"strokes"`
	Messages []internal.ChatMessage `json:"messages"`
}

type strokePayload struct {
	Points []internal.Point `json:"points"`
	Color  string           `json:"color"`
	Width  float64          `json:"width"`
}

// wsClient is one connected player. The write mutex serializes the state
// pump and error replies onto the single websocket.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex

	who    game.Identity
	roomID string
	log    zerolog.Logger
}

func (c *wsClient) send(msgType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(Envelope{Type: msgType, Data: raw})
}

// HandleWebSocket upgrades the connection, joins the player into the
// room, and runs the session: a state pump pushing merged room snapshots
// out, and a read loop dispatching player actions in.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	who := identity(joinRequest{
		PlayerId: r.URL.Query().Get("player_id"),
		Name:     r.URL.Query().Get("name"),
	})

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:   conn,
		who:    who,
		roomID: roomID,
		log: s.log.With().
			Str("room_id", roomID).
			Str("player_id", who.ID).
			Logger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer conn.Close()

	room, err := s.svc.Join(ctx, roomID, who)
	if err != nil {
		_ = client.send("error", err.Error())
		return
	}

	// The host's connection owns the room countdown. Idempotent start,
	// so a host reconnect cannot double the tick rate.
	if room.HostId == who.ID {
		clock := s.svc.NewHostClock(roomID)
		clock.Start(ctx)
		defer clock.Stop()
	}

	updates, err := s.svc.Watch(ctx, roomID)
	if err != nil {
		_ = client.send("error", err.Error())
		return
	}
	go s.statePump(ctx, client, updates)

	client.log.Info().Msg("websocket session started")
	s.readLoop(ctx, client)
	client.log.Info().Msg("websocket session ended")
}

// statePump forwards merged room updates to the client until the watch
// closes. Each update is reshaped for this viewer: guessers get the word
// masked, and the drawer is handed word choices at the start of their
// turn.
func (s *Server) statePump(ctx context.Context, c *wsClient, updates <-chan game.RoomUpdate) {
	choicesSentFor := ""

	for update := range updates {
		view := roomStateView{
			Room:     update.Room,
			Players:  update.Players,
			Strokes:  update.Strokes,
			Messages: update.Messages,
		}
		if view.Room.CurrentWord != "" && view.Room.DrawerId != c.who.ID {
			view.Room.CurrentWord = utils.MaskWord(view.Room.CurrentWord)
		}
		if err := c.send("room_state", view); err != nil {
			c.log.Debug().Err(err).Msg("state push failed, dropping pump")
			return
		}

		// New turn, this client drawing, no word picked yet: offer the
		// choices exactly once per turn.
		turn := fmt.Sprintf("%d/%s", update.Room.CurrentRound, update.Room.DrawerId)
		if update.Room.Status == internal.StatusPlaying &&
			update.Room.DrawerId == c.who.ID &&
			update.Room.CurrentWord == "" &&
			turn != choicesSentFor {
			choicesSentFor = turn
			if err := c.send("word_choices", s.svc.WordChoices()); err != nil {
				return
			}
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// readLoop dispatches inbound actions until the client hangs up.
func (s *Server) readLoop(ctx context.Context, c *wsClient) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		var msg Envelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Debug().Err(err).Msg("unparseable message")
			continue
		}

		// Leaving just ends the session; the registry entry stays so a
		// rejoin picks the score back up.
		if msg.Type == "leave" {
			return
		}

		if err := s.dispatch(ctx, c, msg); err != nil {
			switch {
			case errors.Is(err, game.ErrPreconditionFailed), errors.Is(err, game.ErrRoomNotFound):
				_ = c.send("error", err.Error())
			default:
				c.log.Error().Err(err).Str("type", msg.Type).Msg("action failed")
				_ = c.send("error", "internal error")
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, c *wsClient, msg Envelope) error {
	switch msg.Type {
	case "start_game":
		return s.svc.StartGame(ctx, c.roomID, c.who)

	case "select_word":
		var word string
		if err := json.Unmarshal(msg.Data, &word); err != nil {
			return game.ErrWordNotSet
		}
		return s.svc.SelectWord(ctx, c.roomID, c.who, word)

	case "guess":
		var text string
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			return nil
		}
		_, err := s.svc.SubmitGuess(ctx, c.roomID, c.who, text)
		return err

	case "stroke":
		var p strokePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil
		}
		_, _, err := s.svc.AppendStroke(ctx, c.roomID, c.who, p.Points, p.Color, p.Width)
		return err

	case "clear_canvas":
		return s.svc.ClearStrokes(ctx, c.roomID, c.who)

	default:
		c.log.Debug().Str("type", msg.Type).Msg("unknown message type")
		return nil
	}
}
