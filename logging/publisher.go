package logging

import (
	"context"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

type EntityKind string

const (
	EntityKindUnknown     EntityKind = "unknown"
	EntityKindParticipant EntityKind = "participant"
	EntityKindObserver    EntityKind = "observer"
	EntityKindWorld       EntityKind = "world"
)

type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// ParticipantRef is shorthand for referencing a participant by id.
func ParticipantRef(id string) EntityRef {
	return EntityRef{ID: id, Kind: EntityKindParticipant}
}

const (
	CategoryLifecycle  = "lifecycle"
	CategoryWorld      = "world"
	CategorySimulation = "simulation"
	CategoryNetwork    = "network"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f != nil {
		f(ctx, event)
	}
}

// NopPublisher discards every event.
func NopPublisher() Publisher {
	return PublisherFunc(nil)
}

// WithFields decorates every event published through p with fields. Keys the
// event already carries are left untouched.
func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return PublisherFunc(func(ctx context.Context, event Event) {
		p.Publish(ctx, withDefaultFields(event, copied))
	})
}

func withDefaultFields(event Event, fields map[string]any) Event {
	if len(fields) == 0 {
		return event
	}
	event = event.Clone()
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, exists := event.Extra[k]; !exists {
			event.Extra[k] = v
		}
	}
	return event
}

// Clone copies the slices and maps an event shares with its publisher so a
// sink can hold it after the caller reuses them.
func (event Event) Clone() Event {
	if len(event.Targets) > 0 {
		event.Targets = append([]EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		extra := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			extra[k] = v
		}
		event.Extra = extra
	}
	return event
}
