// Package engine turns world snapshots into the versioned control payload that
// drives the downstream synthesis runtime.
package engine

import (
	"sort"
	"time"

	"intersection/server/internal/mapping"
	"intersection/server/internal/pitch"
	"intersection/server/internal/sequencer"
	"intersection/server/internal/signals"
	"intersection/server/internal/state"
)

// Parameter suffixes appended to the accent prefix.
const (
	AccentGain      = "gain"
	AccentCutoff    = "cutoff"
	AccentResonance = "resonance"
	AccentNote      = "note"
)

// Option customises an Engine.
type Option func(*Engine)

// WithSignals replaces the signal source.
func WithSignals(fn signals.Func) Option {
	return func(e *Engine) {
		if fn != nil {
			e.signals = fn
		}
	}
}

// Engine owns the smoothing and hold-timer state of one orchestrator. It is not
// safe for concurrent use.
type Engine struct {
	cfg       Config
	evaluator *mapping.Evaluator
	sequencer *sequencer.Sequencer
	signals   signals.Func

	tick      uint64
	lastTime  time.Time
	hasLast   bool
	lastDelta time.Duration
	gate      gate
	accent    accent
}

// New constructs an engine. A nil evaluator emits no mapped parameters and a
// nil sequencer is replaced by a fresh one.
func New(cfg Config, evaluator *mapping.Evaluator, seq *sequencer.Sequencer, opts ...Option) *Engine {
	cfg = cfg.normalized()
	if seq == nil {
		seq = sequencer.New()
	}
	e := &Engine{
		cfg:       cfg,
		evaluator: evaluator,
		sequencer: seq,
		signals: signals.New(signals.Bounds{
			Width:    cfg.WorldWidth,
			Height:   cfg.WorldHeight,
			MaxSpeed: cfg.MaxSpeed,
		}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.accent.cutoff = cfg.CutoffBase
	e.accent.resonance = cfg.ResonanceBase
	return e
}

// Config returns the normalised configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Sequencer exposes the sequencer driven by the engine.
func (e *Engine) Sequencer() *sequencer.Sequencer {
	return e.sequencer
}

// Holder returns the identifier currently holding the accent.
func (e *Engine) Holder() string {
	return e.accent.holder
}

// ParamNames lists the parameters appended after the mapped ones, in order.
func (e *Engine) ParamNames() []string {
	prefix := e.cfg.AccentPrefix + "."
	return []string{
		e.cfg.GateParam,
		prefix + AccentGain,
		prefix + AccentCutoff,
		prefix + AccentResonance,
		prefix + AccentNote,
	}
}

// Tick advances the orchestrator to now using the spawned participants.
func (e *Engine) Tick(participants []state.Participant, now time.Time) Payload {
	e.tick++
	dt := e.cfg.DefaultDelta
	if e.hasLast {
		dt = now.Sub(e.lastTime)
		if dt < 0 {
			dt = 0
		}
		if dt > e.cfg.MaxDelta {
			dt = e.cfg.MaxDelta
		}
	}
	e.lastTime = now
	e.hasLast = true
	e.lastDelta = dt

	ordered := make([]state.Participant, len(participants))
	copy(ordered, participants)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	sigs := e.signals(ordered)
	if sigs == nil {
		sigs = map[string]float64{}
	}
	var params []mapping.Param
	if len(ordered) > 0 {
		params = e.evaluator.Evaluate(sigs)
	}

	ids := make([]string, len(ordered))
	for i, p := range ordered {
		ids[i] = p.ID
	}
	grids := e.sequencer.Update(ids)

	gateOpen := e.gate.update(ordered, now, e.cfg.GateRadius, e.cfg.GateHold)

	e.accent.choose(ordered, now, e.cfg.AccentMargin, e.cfg.AccentHold)
	note := -1
	if e.accent.holder != "" {
		note = pitch.Index(e.accent.holder)
	}
	l := lead(ordered, e.cfg.MaxSpeed)
	targetGain := l
	targetCutoff := e.cfg.CutoffBase + l*e.cfg.CutoffLeadSpan
	if note >= 0 {
		targetCutoff += float64(note) / float64(pitch.Classes-1) * e.cfg.CutoffPitchSpan
	}
	targetResonance := e.cfg.ResonanceBase + l*e.cfg.ResonanceSpan

	e.accent.gain = smooth(e.accent.gain, targetGain, alpha(dt, e.cfg.AccentTau))
	e.accent.cutoff = slew(e.accent.cutoff, smooth(e.accent.cutoff, targetCutoff, alpha(dt, e.cfg.CutoffTau)), e.cfg.CutoffSlew)
	e.accent.resonance = smooth(e.accent.resonance, targetResonance, alpha(dt, e.cfg.ResonanceTau))

	gateValue := 0.0
	if gateOpen {
		gateValue = 1
	}
	names := e.ParamNames()
	params = append(params,
		mapping.Param{Name: names[0], Value: gateValue},
		mapping.Param{Name: names[1], Value: e.accent.gain},
		mapping.Param{Name: names[2], Value: e.accent.cutoff},
		mapping.Param{Name: names[3], Value: e.accent.resonance},
		mapping.Param{Name: names[4], Value: float64(note)},
	)

	payload := Payload{
		Version: PayloadVersion,
		Tick:    e.tick,
		Time:    now,
		Signals: sigs,
		Params:  params,
	}
	for voice := range payload.Grids {
		payload.Grids[voice] = Grid{
			Target: e.cfg.GridTargets[voice],
			Voice:  sequencer.VoiceName(voice),
			Cells:  grids[voice],
		}
	}
	return payload
}
