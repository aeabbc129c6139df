package internal

const (
	// TurnSeconds is the countdown every turn starts from. The speed bonus
	// in GuessScore is normalized against it, so changing one without the
	// other skews scoring.
	TurnSeconds = 80

	MaxPlayersPerRoom = 8
	MinPlayersToStart = 2
	DefaultMaxRounds  = 3

	// GuessScore components: floor(timer/TurnSeconds * GuessSpeedPoints) + GuessBasePoints.
	GuessBasePoints  = 100
	GuessSpeedPoints = 500

	// DrawerBonus is credited to the drawer once per correct guesser.
	// Tunable rule, not a contract.
	DrawerBonus = 50

	WordChoiceCount = 3

	// SchemaVersion is stamped on every persisted record for forward
	// migration of the document shapes.
	SchemaVersion = 1
)

// CorrectGuessMarker replaces the message text of a winning guess so the
// word never leaks to other guessers through chat history.
const CorrectGuessMarker = "Guessed correctly!"

type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusStarting RoomStatus = "starting" // reserved, never produced
	StatusPlaying  RoomStatus = "playing"
	StatusEnded    RoomStatus = "ended"
)

type RoomVisibility string

const (
	VisibilityPublic  RoomVisibility = "public"
	VisibilityPrivate RoomVisibility = "private"
)

// Room is the authoritative per-game document at rooms/{roomId}.
//
// Empty DrawerId/CurrentWord stand in for null (no turn assigned yet /
// word not picked yet). Rotation is the drawer order snapshotted at round
// start; it is deliberately NOT re-derived from live scores mid-round.
type Room struct {
	Id            string         `json:"id"`
	SchemaVersion int            `json:"schema_version"`
	Status        RoomStatus     `json:"status"`
	Visibility    RoomVisibility `json:"visibility"`
	CurrentRound  int            `json:"current_round"`
	MaxRounds     int            `json:"max_rounds"`
	DrawerId      string         `json:"drawer_id"`
	CurrentWord   string         `json:"current_word"`
	Timer         int            `json:"timer"`
	HostId        string         `json:"host_id"`
	PlayerCount   int            `json:"player_count"`
	MaxPlayers    int            `json:"max_players"`
	Rotation      []string       `json:"rotation"`
	LastActiveAt  int64          `json:"last_active_at"`
	Winner        string         `json:"winner,omitempty"`
}

// Player lives at rooms/{roomId}/players/{playerId}. One entry per room
// per identity; join is an idempotent upsert and entries are never
// deleted while the room lives.
type Player struct {
	Id            string `json:"id"`
	SchemaVersion int    `json:"schema_version"`
	Name          string `json:"name"`
	Avatar        string `json:"avatar"`
	Score         int    `json:"score"`
	HasGuessed    bool   `json:"has_guessed"`
	IsHost        bool   `json:"is_host"`
	JoinedAt      int64  `json:"joined_at"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one pen-down..pen-up line segment sequence at
// rooms/{roomId}/strokes/{strokeId}. Timestamp is the replay ordering
// key; store arrival order carries no guarantee.
type Stroke struct {
	Id            string  `json:"id"`
	SchemaVersion int     `json:"schema_version"`
	Points        []Point `json:"points"`
	Color         string  `json:"color"`
	Width         float64 `json:"width"`
	Timestamp     int64   `json:"timestamp"`
}

// ChatMessage lives at rooms/{roomId}/messages/{messageId}. Append-only,
// never edited or deleted.
type ChatMessage struct {
	Id            string `json:"id"`
	SchemaVersion int    `json:"schema_version"`
	SenderId      string `json:"sender_id"`
	SenderName    string `json:"sender_name"`
	Text          string `json:"text"`
	IsCorrect     bool   `json:"is_correct"`
	Timestamp     int64  `json:"timestamp"`
}

// GuessScore computes the points for a correct guess read against the
// timer value at the instant of the guess: 600 at turn start, floored at
// 100 when the guess lands on expiry. Integer division keeps the floor
// semantics exact.
func GuessScore(timer int) int {
	if timer < 0 {
		timer = 0
	}
	if timer > TurnSeconds {
		timer = TurnSeconds
	}
	return timer*GuessSpeedPoints/TurnSeconds + GuessBasePoints
}
