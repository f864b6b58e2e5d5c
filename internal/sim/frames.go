package sim

import (
	"intersection/server/internal/engine"
	"intersection/server/internal/state"
	"intersection/server/internal/synth"
)

// ProtocolVersion tracks the wire revision expected by clients.
const ProtocolVersion = 1

// Outbound frame type identifiers.
const (
	FrameWelcome   = "welcome"
	FrameSelf      = "self"
	FrameState     = "state"
	FrameEngine    = "engine"
	FrameParam     = "param"
	FrameHeartbeat = "heartbeat"
)

// WorldInfo describes the shared world to a newly connected client.
type WorldInfo struct {
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	Radius           float64 `json:"radius"`
	MaxSpeed         float64 `json:"maxSpeed"`
	MotionRate       int     `json:"motionRate"`
	BroadcastRate    int     `json:"broadcastRate"`
	SelfRate         int     `json:"selfRate"`
	HeartbeatTimeout int64   `json:"heartbeatTimeoutMillis"`
}

// WelcomeFrame is the first frame a connection receives.
type WelcomeFrame struct {
	Ver   int        `json:"ver"`
	Type  string     `json:"type"`
	ID    string     `json:"id"`
	Role  state.Role `json:"role"`
	World WorldInfo  `json:"world"`
}

// SelfFrame carries a participant's own body on the fast channel.
type SelfFrame struct {
	Ver        int               `json:"ver"`
	Type       string            `json:"type"`
	Player     state.Participant `json:"player"`
	ServerTime int64             `json:"serverTime"`
}

// StateFrame is the general broadcast.
type StateFrame struct {
	Ver        int                    `json:"ver"`
	Type       string                 `json:"type"`
	Tick       uint64                 `json:"tick"`
	Players    []state.Participant    `json:"players"`
	Pairs      []state.CollisionPair  `json:"pairs"`
	Events     []state.CollisionEvent `json:"events"`
	Population int                    `json:"population"`
	Observers  int                    `json:"observers"`
	ServerTime int64                  `json:"serverTime"`
}

// EngineFrame delivers the control payload to observers.
type EngineFrame struct {
	Ver          int                 `json:"ver"`
	Type         string              `json:"type"`
	Full         bool                `json:"full,omitempty"`
	Payload      engine.Payload      `json:"payload"`
	Instructions []synth.Instruction `json:"instructions"`
}

// ParamFrame relays a named value from one connection to the others.
type ParamFrame struct {
	Ver   int     `json:"ver"`
	Type  string  `json:"type"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	From  string  `json:"from"`
}

// HeartbeatFrame acknowledges a client heartbeat.
type HeartbeatFrame struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}
