package engine

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"intersection/server/internal/mapping"
	"intersection/server/internal/pitch"
	"intersection/server/internal/sequencer"
	"intersection/server/internal/signals"
	"intersection/server/internal/state"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	rules, errs := mapping.Default()
	if len(errs) != 0 {
		t.Fatalf("default rules: %v", errs)
	}
	seq := sequencer.New(sequencer.WithRand(rand.New(rand.NewSource(1))))
	return New(cfg, mapping.NewEvaluator(rules), seq)
}

func TestEmptyTick(t *testing.T) {
	cfg := DefaultConfig()
	e := newEngine(t, cfg)
	payload := e.Tick(nil, epoch)

	if payload.Version != PayloadVersion || payload.Tick != 1 {
		t.Fatalf("unexpected header %+v", payload)
	}
	for name, value := range payload.Signals {
		if value != 0 {
			t.Fatalf("expected zero signal %s, got %v", name, value)
		}
	}
	if len(payload.Params) != len(e.ParamNames()) {
		t.Fatalf("expected only gate and accent params, got %+v", payload.Params)
	}
	expect := map[string]float64{
		"gate":             0,
		"accent.gain":      0,
		"accent.cutoff":    cfg.CutoffBase,
		"accent.resonance": cfg.ResonanceBase,
		"accent.note":      -1,
	}
	for name, want := range expect {
		got, ok := payload.Param(name)
		if !ok || got != want {
			t.Fatalf("expected %s=%v, got %v (present=%v)", name, want, got, ok)
		}
	}
	for voice, grid := range payload.Grids {
		if grid.Cells.Active() != 0 {
			t.Fatalf("expected empty grid for voice %d", voice)
		}
		if grid.Target != cfg.GridTargets[voice] || grid.Voice != sequencer.VoiceNames[voice] {
			t.Fatalf("unexpected grid labels %+v", grid)
		}
	}
}

func TestMappedParamsPrecedeEngineParams(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	payload := e.Tick([]state.Participant{{ID: "a", X: 100, Y: 100}}, epoch)
	names := e.ParamNames()
	if len(payload.Params) <= len(names) {
		t.Fatalf("expected mapped params before engine params, got %+v", payload.Params)
	}
	tail := payload.Params[len(payload.Params)-len(names):]
	for i, name := range names {
		if tail[i].Name != name {
			t.Fatalf("expected param %d to be %s, got %s", i, name, tail[i].Name)
		}
	}
	active := 0
	for _, grid := range payload.Grids {
		active += grid.Cells.Active()
	}
	if active != 1 {
		t.Fatalf("expected one active grid cell, got %d", active)
	}
}

func TestDefaultSignalsUseWorldBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorldWidth = 200
	cfg.WorldHeight = 400
	e := newEngine(t, cfg)
	payload := e.Tick([]state.Participant{
		{ID: "a", X: 50, Y: 100},
		{ID: "b", X: 150, Y: 300},
	}, epoch)

	expect := map[string]float64{
		signals.CentroidX: 0.5,
		signals.CentroidY: 0.5,
		signals.Spread:    0.25,
		signals.Closeness: 0.5,
	}
	for name, want := range expect {
		if got := payload.Signals[name]; math.Abs(got-want) > 1e-9 {
			t.Fatalf("expected %s=%v, got %v", name, want, got)
		}
	}
}

func TestZeroBoundsFallBackToDefaults(t *testing.T) {
	e := newEngine(t, Config{})
	if e.Config().WorldWidth != 1000 || e.Config().WorldHeight != 1000 {
		t.Fatalf("expected default world bounds, got %+v", e.Config())
	}
	payload := e.Tick([]state.Participant{{ID: "a", X: 250, Y: 750}}, epoch)
	if payload.Signals[signals.CentroidX] != 0.25 || payload.Signals[signals.CentroidY] != 0.75 {
		t.Fatalf("unexpected centroid %v,%v", payload.Signals[signals.CentroidX], payload.Signals[signals.CentroidY])
	}
}

func TestDeltaDefaultsAndCaps(t *testing.T) {
	cfg := DefaultConfig()
	e := newEngine(t, cfg)
	e.Tick(nil, epoch)
	if e.lastDelta != cfg.DefaultDelta {
		t.Fatalf("expected default delta on first tick, got %v", e.lastDelta)
	}
	e.Tick(nil, epoch.Add(50*time.Millisecond))
	if e.lastDelta != 50*time.Millisecond {
		t.Fatalf("expected measured delta, got %v", e.lastDelta)
	}
	e.Tick(nil, epoch.Add(10*time.Second))
	if e.lastDelta != cfg.MaxDelta {
		t.Fatalf("expected delta capped at %v, got %v", cfg.MaxDelta, e.lastDelta)
	}
}

func TestGateHoldsAfterNewPair(t *testing.T) {
	cfg := DefaultConfig()
	e := newEngine(t, cfg)
	apart := []state.Participant{{ID: "a", X: 100, Y: 100}, {ID: "b", X: 600, Y: 600}}
	near := []state.Participant{{ID: "a", X: 100, Y: 100}, {ID: "b", X: 110, Y: 100}}

	gateAt := func(participants []state.Participant, at time.Time) float64 {
		value, _ := e.Tick(participants, at).Param("gate")
		return value
	}

	if gateAt(apart, epoch) != 0 {
		t.Fatalf("expected closed gate while apart")
	}
	now := epoch.Add(100 * time.Millisecond)
	if gateAt(near, now) != 1 {
		t.Fatalf("expected gate to open on new pair")
	}
	if gateAt(near, now.Add(cfg.GateHold-time.Millisecond)) != 1 {
		t.Fatalf("expected gate to stay open for the hold duration")
	}
	if gateAt(near, now.Add(cfg.GateHold)) != 0 {
		t.Fatalf("expected gate to close once no pair newly formed within the hold")
	}
	later := now.Add(2 * cfg.GateHold)
	gateAt(apart, later)
	if gateAt(near, later.Add(10*time.Millisecond)) != 1 {
		t.Fatalf("expected gate to reopen when the pair forms again")
	}
}

func TestGateDeadlineExtendsWithLaterPairs(t *testing.T) {
	cfg := DefaultConfig()
	e := newEngine(t, cfg)
	first := []state.Participant{{ID: "a", X: 100, Y: 100}, {ID: "b", X: 110, Y: 100}, {ID: "c", X: 800, Y: 800}}
	second := []state.Participant{{ID: "a", X: 100, Y: 100}, {ID: "b", X: 110, Y: 100}, {ID: "c", X: 120, Y: 100}}

	e.Tick(first, epoch)
	mid := epoch.Add(cfg.GateHold / 2)
	e.Tick(second, mid)
	value, _ := e.Tick(second, epoch.Add(cfg.GateHold)).Param("gate")
	if value != 1 {
		t.Fatalf("expected later pair to extend the shared deadline")
	}
	value, _ = e.Tick(second, mid.Add(cfg.GateHold)).Param("gate")
	if value != 0 {
		t.Fatalf("expected gate closed after the extended deadline")
	}
}

func TestCutoffSlewBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CutoffTau = time.Millisecond
	e := newEngine(t, cfg)

	previous := cfg.CutoffBase
	participants := []state.Participant{
		{ID: "fast", X: 100, Y: 100, VX: cfg.MaxSpeed},
		{ID: "slow", X: 900, Y: 900},
	}
	now := epoch
	for i := 0; i < 60; i++ {
		now = now.Add(50 * time.Millisecond)
		var payload Payload
		if i%10 < 5 {
			payload = e.Tick(participants, now)
		} else {
			payload = e.Tick(nil, now)
		}
		cutoff, _ := payload.Param("accent.cutoff")
		if step := math.Abs(cutoff - previous); step > cfg.CutoffSlew+1e-9 {
			t.Fatalf("tick %d: cutoff moved %v, exceeding slew %v", i, step, cfg.CutoffSlew)
		}
		previous = cutoff
	}
}

func TestCutoffConvergesOnTarget(t *testing.T) {
	cfg := DefaultConfig()
	e := newEngine(t, cfg)
	participants := []state.Participant{{ID: "solo", X: 100, Y: 100, VX: 10}}
	now := epoch
	var cutoff float64
	for i := 0; i < 200; i++ {
		now = now.Add(50 * time.Millisecond)
		cutoff, _ = e.Tick(participants, now).Param("accent.cutoff")
	}
	want := cfg.CutoffBase + float64(pitch.Index("solo"))/11*cfg.CutoffPitchSpan
	if math.Abs(cutoff-want) > 1e-6 {
		t.Fatalf("expected cutoff to settle on %v, got %v", want, cutoff)
	}
}

func TestAccentHysteresis(t *testing.T) {
	cfg := DefaultConfig()
	e := newEngine(t, cfg)

	tick := func(at time.Time, aSpeed, bSpeed float64) {
		e.Tick([]state.Participant{
			{ID: "a", X: 100, Y: 100, VX: aSpeed},
			{ID: "b", X: 900, Y: 900, VX: bSpeed},
		}, at)
	}

	tick(epoch, 200, 100)
	if e.Holder() != "a" {
		t.Fatalf("expected a to take the accent, got %q", e.Holder())
	}
	tick(epoch.Add(100*time.Millisecond), 200, 230)
	if e.Holder() != "a" {
		t.Fatalf("expected a to keep the accent inside the margin, got %q", e.Holder())
	}
	tick(epoch.Add(200*time.Millisecond), 200, 240)
	if e.Holder() != "b" {
		t.Fatalf("expected b to take the accent once it exceeds the margin, got %q", e.Holder())
	}
	tick(epoch.Add(300*time.Millisecond), 250, 240)
	if e.Holder() != "b" {
		t.Fatalf("expected b to hold inside the hold window, got %q", e.Holder())
	}
	tick(epoch.Add(200*time.Millisecond+cfg.AccentHold), 250, 240)
	if e.Holder() != "a" {
		t.Fatalf("expected a to reclaim after the hold elapsed, got %q", e.Holder())
	}
}

func TestAccentReleasesVanishedHolder(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	e.Tick([]state.Participant{{ID: "a", VX: 200}, {ID: "b", VX: 10}}, epoch)
	if e.Holder() != "a" {
		t.Fatalf("expected a to hold")
	}
	e.Tick([]state.Participant{{ID: "b", VX: 10}}, epoch.Add(10*time.Millisecond))
	if e.Holder() != "b" {
		t.Fatalf("expected the accent to move when the holder leaves, got %q", e.Holder())
	}
	payload := e.Tick(nil, epoch.Add(20*time.Millisecond))
	if note, _ := payload.Param("accent.note"); note != -1 || e.Holder() != "" {
		t.Fatalf("expected no holder without participants, got note %v holder %q", note, e.Holder())
	}
}

func TestFastestBreaksTiesByID(t *testing.T) {
	best, ok := fastest([]state.Participant{{ID: "z", VX: 5}, {ID: "m", VY: 5}, {ID: "q", VX: -5}})
	if !ok || best.ID != "m" {
		t.Fatalf("expected tie to go to m, got %+v", best)
	}
}

func TestSeparateEnginesDoNotShareState(t *testing.T) {
	a := newEngine(t, DefaultConfig())
	b := newEngine(t, DefaultConfig())
	a.Tick([]state.Participant{{ID: "x", VX: 100}}, epoch)
	if b.Holder() != "" {
		t.Fatalf("expected independent engines")
	}
}
