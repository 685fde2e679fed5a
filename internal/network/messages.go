package network

// Message types. Inbound messages come from clients, outbound ones from the
// server.
const (
	// Client -> Server
	MsgTypeInput = "input"
	MsgTypePing  = "ping"

	// Server -> Client
	MsgTypeConnection         = "connection"
	MsgTypeQueued             = "queued"
	MsgTypeGameCreated        = "gameCreated"
	MsgTypeGameJoined         = "gameJoined"
	MsgTypeGameStarted        = "gameStarted"
	MsgTypeGameStopped        = "gameStopped"
	MsgTypeGameEnded          = "gameEnded"
	MsgTypePlayerDisconnected = "playerDisconnected"
	MsgTypeGameUpdate         = "gameUpdate"
	MsgTypePong               = "pong"
	MsgTypeError              = "error"
)

// Input directions on the wire.
const (
	DirectionLeft  = "left"
	DirectionRight = "right"
	DirectionNone  = "none"
)

// Envelope wraps every frame.
type Envelope struct {
	Type    string      `json:"type" msgpack:"type"`
	Payload interface{} `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// InputMessage from client. Without IsPressed it is the simplified variant
// that just selects a direction. Timestamps are match milliseconds; when
// missing the server stamps the event on arrival.
type InputMessage struct {
	Timestamp *float64 `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"`
	Direction string   `json:"direction" msgpack:"direction"`
	IsPressed *bool    `json:"isPressed,omitempty" msgpack:"isPressed,omitempty"`
}

// PingMessage from client
type PingMessage struct {
	Timestamp float64 `json:"timestamp" msgpack:"timestamp"`
}

// PongMessage to client. ServerTime is the match clock in milliseconds, zero
// outside a match.
type PongMessage struct {
	Timestamp  float64 `json:"timestamp" msgpack:"timestamp"`
	ServerTime float64 `json:"serverTime" msgpack:"serverTime"`
}

// ConnectionMessage greets a new connection.
type ConnectionMessage struct {
	ConnectionID string `json:"connectionId" msgpack:"connectionId"`
	UserID       string `json:"userId" msgpack:"userId"`
	Message      string `json:"message" msgpack:"message"`
}

// QueuedMessage tells a client it waits for an opponent.
type QueuedMessage struct {
	Position int    `json:"position" msgpack:"position"`
	Message  string `json:"message" msgpack:"message"`
}

// GameMessage carries lifecycle notifications: gameCreated, gameJoined,
// gameStarted, gameStopped.
type GameMessage struct {
	GameID   string `json:"gameId" msgpack:"gameId"`
	Message  string `json:"message" msgpack:"message"`
	Player   int    `json:"player,omitempty" msgpack:"player,omitempty"` // 1 or 2
	Opponent string `json:"opponent,omitempty" msgpack:"opponent,omitempty"`
}

// PlayerDisconnectedMessage announces the grace period.
type PlayerDisconnectedMessage struct {
	GameID  string  `json:"gameId" msgpack:"gameId"`
	UserID  string  `json:"userId" msgpack:"userId"`
	Message string  `json:"message" msgpack:"message"`
	GraceMs float64 `json:"graceMs" msgpack:"graceMs"`
}

// GameEndedMessage reports the final score.
type GameEndedMessage struct {
	GameID  string `json:"gameId" msgpack:"gameId"`
	Message string `json:"message" msgpack:"message"`
	Scores  [2]int `json:"scores" msgpack:"scores"`
	Winner  string `json:"winner,omitempty" msgpack:"winner,omitempty"`
	Reason  string `json:"reason" msgpack:"reason"`
}

// Vec3 is a vector on the wire.
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// PaddleState in a game update
type PaddleState struct {
	Pos Vec3 `json:"pos" msgpack:"pos"`
	Dir Vec3 `json:"dir" msgpack:"dir"`
}

// BallState in a game update
type BallState struct {
	Pos   Vec3    `json:"pos" msgpack:"pos"`
	Dir   Vec3    `json:"dir" msgpack:"dir"`
	Speed float64 `json:"speed" msgpack:"speed"`
}

// GameStateMessage is the per-tick authoritative state.
type GameStateMessage struct {
	Timestamp float64     `json:"timestamp" msgpack:"timestamp"`
	P1        PaddleState `json:"p1" msgpack:"p1"`
	P2        PaddleState `json:"p2" msgpack:"p2"`
	Ball      BallState   `json:"ball" msgpack:"ball"`
	Scores    [2]int      `json:"scores" msgpack:"scores"`
}

// ErrorMessage to client
type ErrorMessage struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = 1
	ErrorCodeNotInGame      = 2
	ErrorCodeReplaced       = 3
	ErrorCodeServerError    = 4
	ErrorCodeUnauthorized   = 5
)
