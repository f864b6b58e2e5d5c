package engine

import (
	"math"
	"strings"
	"time"
)

// Config tunes the orchestrator. Zero values are replaced by DefaultConfig.
type Config struct {
	DefaultDelta time.Duration
	MaxDelta     time.Duration

	// WorldWidth and WorldHeight normalise the positional signals.
	WorldWidth  float64
	WorldHeight float64

	GateRadius float64
	GateHold   time.Duration

	// MaxSpeed normalises the fastest-mover lead.
	MaxSpeed     float64
	AccentMargin float64
	AccentHold   time.Duration

	AccentTau    time.Duration
	CutoffTau    time.Duration
	ResonanceTau time.Duration

	CutoffBase      float64
	CutoffPitchSpan float64
	CutoffLeadSpan  float64
	// CutoffSlew bounds the per-tick change of the smoothed cutoff.
	CutoffSlew float64

	ResonanceBase float64
	ResonanceSpan float64

	GateParam    string
	AccentPrefix string
	GridTargets  [3]string
}

// DefaultConfig returns the orchestrator tuning used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		DefaultDelta:    time.Second / 12,
		MaxDelta:        200 * time.Millisecond,
		WorldWidth:      1000,
		WorldHeight:     1000,
		GateRadius:      80,
		GateHold:        300 * time.Millisecond,
		MaxSpeed:        300,
		AccentMargin:    40,
		AccentHold:      750 * time.Millisecond,
		AccentTau:       120 * time.Millisecond,
		CutoffTau:       250 * time.Millisecond,
		ResonanceTau:    400 * time.Millisecond,
		CutoffBase:      400,
		CutoffPitchSpan: 1200,
		CutoffLeadSpan:  2400,
		CutoffSlew:      150,
		ResonanceBase:   0.2,
		ResonanceSpan:   0.6,
		GateParam:       "gate",
		AccentPrefix:    "accent",
		GridTargets:     [3]string{"grid.bass", "grid.baritone", "grid.tenor"},
	}
}

func (cfg Config) normalized() Config {
	defaults := DefaultConfig()
	normalized := cfg
	if normalized.DefaultDelta <= 0 {
		normalized.DefaultDelta = defaults.DefaultDelta
	}
	if normalized.MaxDelta <= 0 {
		normalized.MaxDelta = defaults.MaxDelta
	}
	if !positive(normalized.WorldWidth) {
		normalized.WorldWidth = defaults.WorldWidth
	}
	if !positive(normalized.WorldHeight) {
		normalized.WorldHeight = defaults.WorldHeight
	}
	if !positive(normalized.GateRadius) {
		normalized.GateRadius = defaults.GateRadius
	}
	if normalized.GateHold <= 0 {
		normalized.GateHold = defaults.GateHold
	}
	if !positive(normalized.MaxSpeed) {
		normalized.MaxSpeed = defaults.MaxSpeed
	}
	if normalized.AccentMargin < 0 || !finite(normalized.AccentMargin) {
		normalized.AccentMargin = defaults.AccentMargin
	}
	if normalized.AccentHold < 0 {
		normalized.AccentHold = defaults.AccentHold
	}
	if normalized.AccentTau < 0 {
		normalized.AccentTau = defaults.AccentTau
	}
	if normalized.CutoffTau < 0 {
		normalized.CutoffTau = defaults.CutoffTau
	}
	if normalized.ResonanceTau < 0 {
		normalized.ResonanceTau = defaults.ResonanceTau
	}
	if !finite(normalized.CutoffBase) {
		normalized.CutoffBase = defaults.CutoffBase
	}
	if !finite(normalized.CutoffPitchSpan) {
		normalized.CutoffPitchSpan = defaults.CutoffPitchSpan
	}
	if !finite(normalized.CutoffLeadSpan) {
		normalized.CutoffLeadSpan = defaults.CutoffLeadSpan
	}
	if !positive(normalized.CutoffSlew) {
		normalized.CutoffSlew = defaults.CutoffSlew
	}
	if !finite(normalized.ResonanceBase) {
		normalized.ResonanceBase = defaults.ResonanceBase
	}
	if !finite(normalized.ResonanceSpan) {
		normalized.ResonanceSpan = defaults.ResonanceSpan
	}
	if strings.TrimSpace(normalized.GateParam) == "" {
		normalized.GateParam = defaults.GateParam
	}
	if strings.TrimSpace(normalized.AccentPrefix) == "" {
		normalized.AccentPrefix = defaults.AccentPrefix
	}
	for i, target := range normalized.GridTargets {
		if strings.TrimSpace(target) == "" {
			normalized.GridTargets[i] = defaults.GridTargets[i]
		}
	}
	return normalized
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
