package world

import (
	"testing"
	"time"
)

func TestCollisionEmitsOnceUntilCooldown(t *testing.T) {
	cfg := DefaultConfig()
	w, clock := newTestWorld(t, cfg)
	a := spawn(t, w)
	b := spawn(t, w)
	place(t, w, a, 100, 100)
	place(t, w, b, 110, 100)

	events := w.DetectCollisions()
	if len(events) != 1 {
		t.Fatalf("expected one collision on entry, got %d", len(events))
	}
	if events[0].A != a || events[0].B != b {
		t.Fatalf("expected ordered pair (%s,%s), got (%s,%s)", a, b, events[0].A, events[0].B)
	}

	for i := 0; i < 10; i++ {
		clock.Advance(50 * time.Millisecond)
		if events := w.DetectCollisions(); len(events) != 0 {
			t.Fatalf("expected no retrigger inside cooldown, got %d at step %d", len(events), i)
		}
	}

	clock.Advance(cfg.CollisionCooldown)
	if events := w.DetectCollisions(); len(events) != 1 {
		t.Fatalf("expected retrigger after cooldown, got %d", len(events))
	}
	if got := len(w.DrainEvents()); got != 2 {
		t.Fatalf("expected two queued events, got %d", got)
	}
	if w.DrainEvents() != nil {
		t.Fatalf("expected drain to empty the queue")
	}
}

func TestCollisionPairPrunedOnSeparation(t *testing.T) {
	w, _ := newTestWorld(t, DefaultConfig())
	a := spawn(t, w)
	b := spawn(t, w)
	place(t, w, a, 100, 100)
	place(t, w, b, 120, 100)

	w.DetectCollisions()
	if !w.Tracking(b, a) {
		t.Fatalf("expected pair to be tracked")
	}

	place(t, w, b, 600, 600)
	w.DetectCollisions()
	if w.Tracking(a, b) {
		t.Fatalf("expected separated pair to be pruned")
	}

	place(t, w, b, 100, 130)
	if events := w.DetectCollisions(); len(events) != 1 {
		t.Fatalf("expected re-entry to emit immediately, got %d", len(events))
	}
}

func TestCollisionRadiusIsExclusive(t *testing.T) {
	cfg := DefaultConfig()
	w, _ := newTestWorld(t, cfg)
	a := spawn(t, w)
	b := spawn(t, w)
	place(t, w, a, 200, 200)
	place(t, w, b, 200+cfg.CollisionRadius, 200)

	if events := w.DetectCollisions(); len(events) != 0 {
		t.Fatalf("expected touching at exactly the radius to be ignored, got %d", len(events))
	}
}

func TestCollisionsIgnoreUnspawnedAndObservers(t *testing.T) {
	w, _ := newTestWorld(t, DefaultConfig())
	a := spawn(t, w)
	place(t, w, a, 100, 100)
	waiting := w.Connect("participant")
	w.records[waiting].x, w.records[waiting].y = 100, 100
	w.Connect("observer")

	if events := w.DetectCollisions(); len(events) != 0 {
		t.Fatalf("expected no collisions without a second body, got %d", len(events))
	}
}

func TestDisconnectDropsPairsAndPendingEvents(t *testing.T) {
	w, _ := newTestWorld(t, DefaultConfig())
	a := spawn(t, w)
	b := spawn(t, w)
	c := spawn(t, w)
	place(t, w, a, 100, 100)
	place(t, w, b, 110, 100)
	place(t, w, c, 800, 800)

	w.DetectCollisions()
	w.Disconnect(b)

	if w.Tracking(a, b) {
		t.Fatalf("expected pair removed with participant")
	}
	if len(w.Pairs()) != 0 {
		t.Fatalf("expected no tracked pairs, got %+v", w.Pairs())
	}
	if events := w.DrainEvents(); len(events) != 0 {
		t.Fatalf("expected pending events for removed participant dropped, got %+v", events)
	}
}
