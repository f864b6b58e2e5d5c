package sim

import (
	"time"

	"intersection/server/internal/state"
)

// CommandType enumerates the intents a connection can submit to the loop.
type CommandType string

const (
	CommandConnect    CommandType = "Connect"
	CommandRespawn    CommandType = "Respawn"
	CommandIntent     CommandType = "Intent"
	CommandMeta       CommandType = "Meta"
	CommandHeartbeat  CommandType = "Heartbeat"
	CommandParam      CommandType = "Param"
	CommandDisconnect CommandType = "Disconnect"
)

// IntentCommand carries the desired velocity.
type IntentCommand struct {
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// MetaCommand carries display metadata.
type MetaCommand struct {
	Name         string  `json:"name"`
	ScreenWidth  float64 `json:"screenWidth"`
	ScreenHeight float64 `json:"screenHeight"`
}

// HeartbeatCommand records when a heartbeat arrived and the client's send time.
type HeartbeatCommand struct {
	ReceivedAt time.Time `json:"receivedAt"`
	ClientSent int64     `json:"clientSent"`
}

// ParamCommand is a named value relayed to every other connection.
type ParamCommand struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ConnectCommand registers a session. The loop answers on Reply with the new id.
type ConnectCommand struct {
	Role    state.Role
	Session Session
	Reply   chan<- string
}

// Command is an intent captured for processing on the loop goroutine.
type Command struct {
	ActorID   string            `json:"actorId"`
	Type      CommandType       `json:"type"`
	IssuedAt  time.Time         `json:"issuedAt"`
	Intent    *IntentCommand    `json:"intent,omitempty"`
	Meta      *MetaCommand      `json:"meta,omitempty"`
	Heartbeat *HeartbeatCommand `json:"heartbeat,omitempty"`
	Param     *ParamCommand     `json:"param,omitempty"`
	Connect   *ConnectCommand   `json:"-"`
	Reason    string            `json:"reason,omitempty"`
}
