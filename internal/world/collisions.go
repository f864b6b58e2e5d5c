package world

import (
	"context"
	"math"
	"sort"
	"time"

	"intersection/server/internal/state"
	loggingWorld "intersection/server/logging/world"
)

type pairKey struct {
	a string
	b string
}

func newPairKey(a, b string) pairKey {
	a, b = state.OrderedPair(a, b)
	return pairKey{a: a, b: b}
}

type pairState struct {
	firstDetected time.Time
	lastEvent     time.Time
}

// DetectCollisions runs the pairwise proximity test over spawned participants.
// A pair entering range emits one event; a tracked pair emits again only once
// the cooldown has elapsed. Pairs that separate stop being tracked.
func (w *World) DetectCollisions() []state.CollisionEvent {
	now := w.clock.Now()
	bodies := make([]*record, 0, len(w.records))
	for _, rec := range w.records {
		if rec.role == state.RoleParticipant && rec.spawned {
			bodies = append(bodies, rec)
		}
	}
	sort.Slice(bodies, func(i, j int) bool { return bodies[i].id < bodies[j].id })

	limit := w.cfg.CollisionRadius * w.cfg.CollisionRadius
	inRange := make(map[pairKey]struct{})
	var events []state.CollisionEvent

	for i := 0; i < len(bodies); i++ {
		a := bodies[i]
		for j := i + 1; j < len(bodies); j++ {
			b := bodies[j]
			dx := a.x - b.x
			dy := a.y - b.y
			distSq := dx*dx + dy*dy
			if distSq >= limit {
				continue
			}
			key := pairKey{a: a.id, b: b.id}
			inRange[key] = struct{}{}

			pair, tracked := w.pairs[key]
			switch {
			case !tracked:
				w.pairs[key] = &pairState{firstDetected: now, lastEvent: now}
			case now.Sub(pair.lastEvent) >= w.cfg.CollisionCooldown:
				pair.lastEvent = now
			default:
				continue
			}
			event := state.CollisionEvent{A: key.a, B: key.b, At: now}
			events = append(events, event)
			loggingWorld.Collision(context.Background(), w.publisher, w.tick, key.a, key.b, loggingWorld.CollisionPayload{
				Distance:  math.Sqrt(distSq),
				Retrigger: tracked,
			}, nil)
		}
	}

	for key := range w.pairs {
		if _, ok := inRange[key]; !ok {
			delete(w.pairs, key)
		}
	}

	w.enqueue(events)
	return events
}

// DrainEvents returns the collision events queued since the previous drain.
func (w *World) DrainEvents() []state.CollisionEvent {
	if len(w.pending) == 0 {
		return nil
	}
	drained := w.pending
	w.pending = nil
	return drained
}

// Pairs returns the actively tracked collision pairs ordered by identifiers.
func (w *World) Pairs() []state.CollisionPair {
	pairs := make([]state.CollisionPair, 0, len(w.pairs))
	for key, pair := range w.pairs {
		pairs = append(pairs, state.CollisionPair{
			A:             key.a,
			B:             key.b,
			FirstDetected: pair.firstDetected,
			LastEvent:     pair.lastEvent,
		})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}

// Tracking reports whether the unordered pair (a, b) is currently tracked.
func (w *World) Tracking(a, b string) bool {
	_, ok := w.pairs[newPairKey(a, b)]
	return ok
}

func (w *World) enqueue(events []state.CollisionEvent) {
	if len(events) == 0 {
		return
	}
	w.pending = append(w.pending, events...)
	if overflow := len(w.pending) - maxPendingEvents; overflow > 0 {
		w.pending = append([]state.CollisionEvent(nil), w.pending[overflow:]...)
	}
}
