package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"intersection/server/internal/sim"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = sim.ProtocolVersion

// Client message type identifiers.
const (
	TypeRespawn   = "respawn"
	TypeIntent    = "intent"
	TypeMeta      = "meta"
	TypeParam     = "param"
	TypeHeartbeat = "heartbeat"
)

var (
	// ErrMalformed reports a payload that is not a JSON object.
	ErrMalformed = errors.New("proto: malformed message")
	// ErrUnknownType reports a message type the server does not handle.
	ErrUnknownType = errors.New("proto: unknown message type")
)

// ClientMessage is the fixed schema every inbound websocket message is coerced into.
type ClientMessage struct {
	Ver          int     `json:"ver,omitempty"`
	Type         string  `json:"type"`
	VX           float64 `json:"vx"`
	VY           float64 `json:"vy"`
	Name         string  `json:"name"`
	ScreenWidth  float64 `json:"screenWidth"`
	ScreenHeight float64 `json:"screenHeight"`
	Value        float64 `json:"value"`
	SentAt       int64   `json:"sentAt"`
}

// Decode converts a raw websocket payload into a ClientMessage. Numeric fields
// that are missing, non-numeric or non-finite become 0; numeric strings are
// accepted. Errors are reported for logging only and are never sent back.
func Decode(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return msg, ErrMalformed
	}

	msg.Type, _ = raw["type"].(string)
	// Clients pin no version; whatever they send is read with the current schema.
	msg.Ver = Version

	switch msg.Type {
	case TypeRespawn:
	case TypeIntent:
		msg.VX = number(raw["vx"])
		msg.VY = number(raw["vy"])
	case TypeMeta:
		msg.Name, _ = raw["name"].(string)
		msg.ScreenWidth = number(raw["screenWidth"])
		msg.ScreenHeight = number(raw["screenHeight"])
	case TypeParam:
		msg.Name, _ = raw["name"].(string)
		msg.Value = number(raw["value"])
	case TypeHeartbeat:
		sent := number(raw["sentAt"])
		if sent > 0 && sent < math.MaxInt64 {
			msg.SentAt = int64(sent)
		}
	default:
		return msg, fmt.Errorf("%w %q", ErrUnknownType, msg.Type)
	}
	return msg, nil
}

// ClientCommand captures the simulation command carried by a websocket
// message. Actor and timing metadata are filled in by the transport.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	switch msg.Type {
	case TypeRespawn:
		return sim.Command{Type: sim.CommandRespawn}, true
	case TypeIntent:
		return sim.Command{
			Type:   sim.CommandIntent,
			Intent: &sim.IntentCommand{VX: msg.VX, VY: msg.VY},
		}, true
	case TypeMeta:
		return sim.Command{
			Type: sim.CommandMeta,
			Meta: &sim.MetaCommand{
				Name:         msg.Name,
				ScreenWidth:  msg.ScreenWidth,
				ScreenHeight: msg.ScreenHeight,
			},
		}, true
	case TypeParam:
		name := strings.TrimSpace(msg.Name)
		if name == "" {
			return sim.Command{}, false
		}
		return sim.Command{
			Type:  sim.CommandParam,
			Param: &sim.ParamCommand{Name: name, Value: msg.Value},
		}, true
	case TypeHeartbeat:
		return sim.Command{
			Type:      sim.CommandHeartbeat,
			Heartbeat: &sim.HeartbeatCommand{ClientSent: msg.SentAt},
		}, true
	default:
		return sim.Command{}, false
	}
}

func number(value any) float64 {
	var f float64
	switch v := value.(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
