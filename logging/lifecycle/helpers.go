package lifecycle

import (
	"context"

	"intersection/server/logging"
)

const (
	// EventConnected is emitted when a socket registers as a participant or observer.
	EventConnected logging.EventType = "lifecycle.connected"
	// EventRespawned is emitted when a participant is placed into the world.
	EventRespawned logging.EventType = "lifecycle.respawned"
	// EventStalled is emitted when a participant's heartbeat lapses and its motion freezes.
	EventStalled logging.EventType = "lifecycle.stalled"
	// EventResumed is emitted when a stalled participant is heard from again.
	EventResumed logging.EventType = "lifecycle.resumed"
	// EventDisconnected is emitted when a connection leaves the world.
	EventDisconnected logging.EventType = "lifecycle.disconnected"
)

// ConnectedPayload records the role a connection registered with.
type ConnectedPayload struct {
	Role       string `json:"role"`
	Population int    `json:"population"`
}

// RespawnedPayload captures spawn metadata.
type RespawnedPayload struct {
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
	Name   string  `json:"name,omitempty"`
}

// StalledPayload captures how long a participant has been silent.
type StalledPayload struct {
	SilentMillis int64 `json:"silentMillis"`
}

// DisconnectedPayload captures the reason a connection left.
type DisconnectedPayload struct {
	Reason     string `json:"reason"`
	Population int    `json:"population"`
}

// Connected publishes a connection event.
func Connected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ConnectedPayload, extra map[string]any) {
	publish(ctx, pub, EventConnected, logging.SeverityInfo, tick, actor, payload, extra)
}

// Respawned publishes a respawn event.
func Respawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RespawnedPayload, extra map[string]any) {
	publish(ctx, pub, EventRespawned, logging.SeverityInfo, tick, actor, payload, extra)
}

// Stalled publishes a warning when a participant's heartbeat times out.
func Stalled(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StalledPayload, extra map[string]any) {
	publish(ctx, pub, EventStalled, logging.SeverityWarn, tick, actor, payload, extra)
}

// Resumed publishes an event when a stalled participant resumes.
func Resumed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, extra map[string]any) {
	publish(ctx, pub, EventResumed, logging.SeverityInfo, tick, actor, nil, extra)
}

// Disconnected publishes a disconnect event.
func Disconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DisconnectedPayload, extra map[string]any) {
	publish(ctx, pub, EventDisconnected, logging.SeverityInfo, tick, actor, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
