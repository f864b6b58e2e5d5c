package world

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"intersection/server/internal/state"
	"intersection/server/logging"
	loggingLifecycle "intersection/server/logging/lifecycle"
)

type manualClock struct {
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type lifecycleRecorder struct {
	events []logging.Event
}

func (p *lifecycleRecorder) Publish(_ context.Context, event logging.Event) {
	p.events = append(p.events, event)
}

func (p *lifecycleRecorder) count(eventType logging.EventType) int {
	total := 0
	for _, event := range p.events {
		if event.Type == eventType {
			total++
		}
	}
	return total
}

func newTestWorld(t *testing.T, cfg Config) (*World, *manualClock) {
	t.Helper()
	clock := newManualClock()
	seq := 0
	w := New(cfg,
		WithClock(clock),
		WithRand(rand.New(rand.NewSource(7))),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("p%02d", seq)
		}),
	)
	return w, clock
}

func place(t *testing.T, w *World, id string, x, y float64) {
	t.Helper()
	rec, ok := w.records[id]
	if !ok {
		t.Fatalf("unknown participant %s", id)
	}
	rec.x, rec.y = x, y
}

func spawn(t *testing.T, w *World) string {
	t.Helper()
	id := w.Connect(state.RoleParticipant)
	if !w.Respawn(id) {
		t.Fatalf("respawn failed for %s", id)
	}
	return id
}

func TestRespawnPlacesWithinBoundsAndResetsVelocity(t *testing.T) {
	cfg := DefaultConfig()
	w, _ := newTestWorld(t, cfg)

	for i := 0; i < 50; i++ {
		id := spawn(t, w)
		p, ok := w.Participant(id)
		if !ok {
			t.Fatalf("expected spawned participant %s", id)
		}
		if p.X < cfg.Radius || p.X > cfg.Width-cfg.Radius || p.Y < cfg.Radius || p.Y > cfg.Height-cfg.Radius {
			t.Fatalf("spawn outside bounds: %+v", p)
		}
		if p.VX != 0 || p.VY != 0 {
			t.Fatalf("expected zero velocity after respawn, got %+v", p)
		}
	}
}

func TestRespawnPreservesDisplayName(t *testing.T) {
	w, _ := newTestWorld(t, DefaultConfig())
	id := w.Connect(state.RoleParticipant)
	if !w.SetMeta(id, Meta{Name: "  Ada   Lovelace \n"}) {
		t.Fatalf("expected meta to be accepted")
	}
	if !w.Respawn(id) {
		t.Fatalf("respawn failed")
	}
	w.SetIntent(id, 100, 0)
	w.Tick(0.1)
	if !w.Respawn(id) {
		t.Fatalf("second respawn failed")
	}
	p, _ := w.Participant(id)
	if p.Name != "Ada Lovelace" {
		t.Fatalf("expected preserved normalised name, got %q", p.Name)
	}
	if p.VX != 0 || p.VY != 0 {
		t.Fatalf("expected velocity reset, got %+v", p)
	}
}

func TestConnectedParticipantHasNoBodyUntilRespawn(t *testing.T) {
	w, _ := newTestWorld(t, DefaultConfig())
	id := w.Connect(state.RoleParticipant)
	if _, ok := w.Participant(id); ok {
		t.Fatalf("expected no body before respawn")
	}
	if len(w.Snapshot()) != 0 {
		t.Fatalf("expected empty snapshot")
	}
	if w.Population() != 1 {
		t.Fatalf("expected population 1, got %d", w.Population())
	}
}

func TestObserversCannotMoveAndAreNotCounted(t *testing.T) {
	w, _ := newTestWorld(t, DefaultConfig())
	observer := w.Connect(state.RoleObserver)
	if w.Respawn(observer) {
		t.Fatalf("observers must not respawn")
	}
	if w.SetIntent(observer, 1, 1) {
		t.Fatalf("observers must not set intent")
	}
	if !w.Heartbeat(observer) {
		t.Fatalf("observers still heartbeat")
	}
	if w.Population() != 0 || w.Observers() != 1 {
		t.Fatalf("unexpected counts population=%d observers=%d", w.Population(), w.Observers())
	}
}

func TestSetIntentClampsToMaxSpeed(t *testing.T) {
	cfg := DefaultConfig()
	w, _ := newTestWorld(t, cfg)
	id := spawn(t, w)

	w.SetIntent(id, 3000, 4000)
	rec := w.records[id]
	if got := math.Hypot(rec.desiredX, rec.desiredY); math.Abs(got-cfg.MaxSpeed) > 1e-9 {
		t.Fatalf("expected desired speed %v, got %v", cfg.MaxSpeed, got)
	}
	if math.Abs(rec.desiredX/rec.desiredY-0.75) > 1e-9 {
		t.Fatalf("expected direction preserved, got (%v,%v)", rec.desiredX, rec.desiredY)
	}

	w.SetIntent(id, math.NaN(), math.Inf(1))
	if rec.desiredX != 0 || rec.desiredY != 0 {
		t.Fatalf("expected non-finite intent coerced to zero, got (%v,%v)", rec.desiredX, rec.desiredY)
	}
	if w.SetIntent("missing", 1, 1) {
		t.Fatalf("expected unknown id to be rejected")
	}
}

func TestTickBlendsVelocityTowardIntent(t *testing.T) {
	cfg := DefaultConfig()
	w, _ := newTestWorld(t, cfg)
	id := spawn(t, w)
	place(t, w, id, 500, 500)

	w.SetIntent(id, 100, 0)
	w.Tick(0.1)
	p, _ := w.Participant(id)
	wantVX := 100 * cfg.VelocityBlend
	if math.Abs(p.VX-wantVX) > 1e-9 {
		t.Fatalf("expected vx %v after one tick, got %v", wantVX, p.VX)
	}
	if math.Abs(p.X-(500+wantVX*0.1)) > 1e-9 {
		t.Fatalf("expected integrated x, got %v", p.X)
	}

	for i := 0; i < 100; i++ {
		w.Tick(0.001)
	}
	p, _ = w.Participant(id)
	if math.Abs(p.VX-100) > 1e-3 {
		t.Fatalf("expected velocity to converge on intent, got %v", p.VX)
	}
}

func TestTickClampsToWorldBounds(t *testing.T) {
	cfg := DefaultConfig()
	w, _ := newTestWorld(t, cfg)
	id := spawn(t, w)
	place(t, w, id, cfg.Width-cfg.Radius-1, 500)
	rec := w.records[id]
	rec.vx = cfg.MaxSpeed
	rec.desiredX = cfg.MaxSpeed

	w.Tick(1)
	p, _ := w.Participant(id)
	if p.X != cfg.Width-cfg.Radius {
		t.Fatalf("expected x clamped to %v, got %v", cfg.Width-cfg.Radius, p.X)
	}
	if p.VX != 0 {
		t.Fatalf("expected clamped axis velocity zeroed, got %v", p.VX)
	}
}

func TestHeartbeatTimeoutFreezesWithoutRemoving(t *testing.T) {
	cfg := DefaultConfig()
	pub := &lifecycleRecorder{}
	clock := newManualClock()
	w := New(cfg, WithClock(clock), WithPublisher(pub), WithRand(rand.New(rand.NewSource(1))))
	id := w.Connect(state.RoleParticipant)
	w.Respawn(id)
	place(t, w, id, 500, 500)
	w.SetIntent(id, 100, 0)
	w.Tick(0.1)

	clock.Advance(cfg.HeartbeatTimeout + time.Millisecond)
	before, _ := w.Participant(id)
	w.Tick(0.1)
	after, ok := w.Participant(id)
	if !ok {
		t.Fatalf("stalled participant must not be removed")
	}
	if !after.Stalled {
		t.Fatalf("expected participant flagged stalled")
	}
	if after.X != before.X || after.Y != before.Y {
		t.Fatalf("expected frozen position, moved from %+v to %+v", before, after)
	}
	if after.VX != 0 || after.VY != 0 {
		t.Fatalf("expected frozen velocity, got %+v", after)
	}
	if pub.count(loggingLifecycle.EventStalled) != 1 {
		t.Fatalf("expected one stalled event")
	}

	w.Heartbeat(id)
	w.Tick(0.1)
	resumed, _ := w.Participant(id)
	if resumed.Stalled {
		t.Fatalf("expected participant to resume after heartbeat")
	}
	if resumed.X <= after.X {
		t.Fatalf("expected motion to resume, x stayed at %v", resumed.X)
	}
	if pub.count(loggingLifecycle.EventResumed) != 1 {
		t.Fatalf("expected one resumed event")
	}
}

func TestDisconnectRemovesParticipant(t *testing.T) {
	w, _ := newTestWorld(t, DefaultConfig())
	id := spawn(t, w)
	if !w.Disconnect(id) {
		t.Fatalf("expected disconnect to succeed")
	}
	if w.Connected(id) {
		t.Fatalf("expected participant removed")
	}
	if w.Disconnect(id) {
		t.Fatalf("expected second disconnect to report missing id")
	}
	if w.Respawn(id) {
		t.Fatalf("removed participants cannot respawn without reconnecting")
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"":                                     "",
		"  spaced   out  ":                     "spaced out",
		"tab\tand\x00nul":                      "tab andnul",
		"e\u0301cole":                          "\u00e9cole",
		"abcdefghijklmnopqrstuvwxyz0123456789": "abcdefghijklmnopqrstuvwxyz012345",
	}
	for input, want := range cases {
		if got := normalizeName(input); got != want {
			t.Fatalf("normalizeName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestConfigNormalizedRepairsInvalidValues(t *testing.T) {
	cfg := Config{Width: -1, Height: math.Inf(1), Radius: math.NaN(), VelocityBlend: 3}
	normalized := cfg.normalized()
	defaults := DefaultConfig()
	if normalized.Width != defaults.Width || normalized.Height != defaults.Height {
		t.Fatalf("expected default bounds, got %vx%v", normalized.Width, normalized.Height)
	}
	if normalized.Radius != defaults.Radius {
		t.Fatalf("expected default radius, got %v", normalized.Radius)
	}
	if normalized.VelocityBlend != defaults.VelocityBlend {
		t.Fatalf("expected default blend, got %v", normalized.VelocityBlend)
	}
}
