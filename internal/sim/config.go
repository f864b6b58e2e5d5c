package sim

import (
	"errors"
	"fmt"
)

// ErrInvalidRates is returned when the tick rates cannot be scheduled.
var ErrInvalidRates = errors.New("sim: invalid tick rates")

// LoopConfig tunes the tick rates and command intake.
type LoopConfig struct {
	MotionRate      int
	BroadcastRate   int
	SelfRate        int
	CatchupMaxTicks int
	CommandCapacity int
	ControlCapacity int
	PerActorLimit   int
	WarningStep     int
}

// DefaultLoopConfig returns the rates used when nothing overrides them.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MotionRate:      60,
		BroadcastRate:   15,
		SelfRate:        30,
		CatchupMaxTicks: 3,
		CommandCapacity: 1024,
		ControlCapacity: 64,
		PerActorLimit:   32,
		WarningStep:     256,
	}
}

// Validate reports unusable rates. The self channel must be at least as fast
// as the general broadcast.
func (cfg LoopConfig) Validate() error {
	var errs []error
	if cfg.MotionRate <= 0 {
		errs = append(errs, fmt.Errorf("motion rate must be positive, got %d", cfg.MotionRate))
	}
	if cfg.BroadcastRate <= 0 {
		errs = append(errs, fmt.Errorf("broadcast rate must be positive, got %d", cfg.BroadcastRate))
	}
	if cfg.SelfRate <= 0 {
		errs = append(errs, fmt.Errorf("self rate must be positive, got %d", cfg.SelfRate))
	}
	if cfg.SelfRate > 0 && cfg.BroadcastRate > 0 && cfg.SelfRate < cfg.BroadcastRate {
		errs = append(errs, fmt.Errorf("self rate %d must not be slower than broadcast rate %d", cfg.SelfRate, cfg.BroadcastRate))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRates, errors.Join(errs...))
}

func (cfg LoopConfig) normalized() LoopConfig {
	defaults := DefaultLoopConfig()
	normalized := cfg
	if normalized.MotionRate <= 0 {
		normalized.MotionRate = defaults.MotionRate
	}
	if normalized.BroadcastRate <= 0 {
		normalized.BroadcastRate = defaults.BroadcastRate
	}
	if normalized.SelfRate <= 0 {
		normalized.SelfRate = defaults.SelfRate
	}
	if normalized.CatchupMaxTicks < 1 {
		normalized.CatchupMaxTicks = 1
	}
	if normalized.CommandCapacity <= 0 {
		normalized.CommandCapacity = defaults.CommandCapacity
	}
	if normalized.ControlCapacity <= 0 {
		normalized.ControlCapacity = defaults.ControlCapacity
	}
	if normalized.PerActorLimit < 0 {
		normalized.PerActorLimit = 0
	}
	return normalized
}
