package network

import (
	"context"

	"intersection/server/logging"
)

const (
	// EventMalformedMessage is emitted when a client frame cannot be decoded.
	EventMalformedMessage logging.EventType = "network.malformed_message"
	// EventSubscriberDropped is emitted when a slow or failed subscriber is removed.
	EventSubscriberDropped logging.EventType = "network.subscriber_dropped"
)

// MalformedMessagePayload captures why a frame was discarded.
type MalformedMessagePayload struct {
	Bytes  int    `json:"bytes"`
	Reason string `json:"reason"`
}

// SubscriberDroppedPayload captures why a subscriber was removed.
type SubscriberDroppedPayload struct {
	Reason string `json:"reason"`
}

// MalformedMessage publishes a debug event for a discarded client frame.
func MalformedMessage(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload MalformedMessagePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventMalformedMessage,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// SubscriberDropped publishes a warning when a subscriber is removed by the server.
func SubscriberDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SubscriberDroppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSubscriberDropped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
