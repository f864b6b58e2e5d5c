// Package state holds the read-only records exchanged between the world
// simulator, the broadcast loop and the engine orchestrator.
package state

import (
	"math"
	"time"
)

// Role distinguishes connections that own a body from passive observers.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleObserver    Role = "observer"
)

// ParseRole maps a raw role string onto a Role, defaulting to participant.
func ParseRole(raw string) Role {
	if Role(raw) == RoleObserver {
		return RoleObserver
	}
	return RoleParticipant
}

// Participant is a snapshot of one spawned participant.
type Participant struct {
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
	Radius  float64 `json:"radius"`
	Mass    float64 `json:"mass"`
	Stalled bool    `json:"stalled,omitempty"`
}

// Speed returns the magnitude of the participant's velocity.
func (p Participant) Speed() float64 {
	return math.Hypot(p.VX, p.VY)
}

// CollisionEvent marks a pair of participants entering the collision radius,
// or re-triggering after the cooldown. A is always lexically before B.
type CollisionEvent struct {
	A  string    `json:"a"`
	B  string    `json:"b"`
	At time.Time `json:"-"`
}

// CollisionPair is a snapshot of an actively tracked pair.
type CollisionPair struct {
	A             string    `json:"a"`
	B             string    `json:"b"`
	FirstDetected time.Time `json:"-"`
	LastEvent     time.Time `json:"-"`
}

// OrderedPair returns the two ids in lexical order.
func OrderedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
