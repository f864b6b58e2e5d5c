package world

import (
	"context"

	"intersection/server/logging"
)

const (
	// EventCollision is emitted when two participants come within the collision radius.
	EventCollision logging.EventType = "world.collision"
)

// CollisionPayload captures the distance at detection time and whether the event
// is a cooldown re-trigger of an already tracked pair.
type CollisionPayload struct {
	Distance  float64 `json:"distance"`
	Retrigger bool    `json:"retrigger"`
}

// Collision publishes a debug event for a detected collision pair.
func Collision(ctx context.Context, pub logging.Publisher, tick uint64, a, b string, payload CollisionPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventCollision,
		Tick:     tick,
		Actor:    logging.ParticipantRef(a),
		Targets:  []logging.EntityRef{logging.ParticipantRef(b)},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryWorld,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
