package config

import (
	"errors"
	"fmt"
	"math"
)

// Validate ensures the configuration is usable. Every problem is reported.
func (c *Config) Validate() error {
	var errs []error
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateWorld()...)
	errs = append(errs, c.validateLoop()...)
	errs = append(errs, c.validateCollision()...)
	errs = append(errs, c.validateEngine()...)
	errs = append(errs, c.validateLogging()...)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func (c *Config) validateServer() []error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must be set"))
	}
	if c.Server.SendQueue <= 0 {
		errs = append(errs, errors.New("server.send_queue must be positive"))
	}
	if c.Server.ShutdownTimeoutMS < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout_ms must not be negative"))
	}
	return errs
}

func (c *Config) validateWorld() []error {
	errs := ensurePositive(map[string]float64{
		"world.width":          c.World.Width,
		"world.height":         c.World.Height,
		"world.mass":           c.World.Mass,
		"world.max_speed":      c.World.MaxSpeed,
		"world.velocity_blend": c.World.VelocityBlend,
	})
	if c.World.Radius < 0 || math.IsNaN(c.World.Radius) {
		errs = append(errs, errors.New("world.radius must not be negative"))
	} else if c.World.Radius*2 > c.World.Width || c.World.Radius*2 > c.World.Height {
		errs = append(errs, errors.New("world.radius must fit inside the world bounds"))
	}
	if c.World.VelocityBlend > 1 {
		errs = append(errs, errors.New("world.velocity_blend must be at most 1"))
	}
	if c.World.HeartbeatTimeoutMS <= 0 {
		errs = append(errs, errors.New("world.heartbeat_timeout_ms must be positive"))
	}
	return errs
}

func (c *Config) validateLoop() []error {
	var errs []error
	if err := c.LoopConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("loop: %w", err))
	}
	if c.Loop.CatchupMaxTicks < 1 {
		errs = append(errs, errors.New("loop.catchup_max_ticks must be at least 1"))
	}
	if c.Loop.CommandCapacity <= 0 {
		errs = append(errs, errors.New("loop.command_capacity must be positive"))
	}
	if c.Loop.PerActorLimit < 0 {
		errs = append(errs, errors.New("loop.per_actor_limit must not be negative"))
	}
	return errs
}

func (c *Config) validateCollision() []error {
	var errs []error
	if c.Collision.Radius < 0 || math.IsNaN(c.Collision.Radius) {
		errs = append(errs, errors.New("collision.radius must not be negative"))
	}
	if c.Collision.CooldownMS < 0 {
		errs = append(errs, errors.New("collision.cooldown_ms must not be negative"))
	}
	return errs
}

func (c *Config) validateEngine() []error {
	e := c.Engine
	errs := ensurePositive(map[string]float64{
		"engine.max_delta_ms": float64(e.MaxDeltaMS),
		"engine.cutoff_slew":  e.CutoffSlew,
	})
	for name, value := range map[string]int{
		"engine.gate_hold_ms":     e.GateHoldMS,
		"engine.accent_hold_ms":   e.AccentHoldMS,
		"engine.accent_tau_ms":    e.AccentTauMS,
		"engine.cutoff_tau_ms":    e.CutoffTauMS,
		"engine.resonance_tau_ms": e.ResonanceTauMS,
	} {
		if value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if e.GateRadius < 0 || e.AccentMargin < 0 {
		errs = append(errs, errors.New("engine.gate_radius and engine.accent_margin must not be negative"))
	}
	if e.GateParam == "" || e.AccentPrefix == "" {
		errs = append(errs, errors.New("engine.gate_param and engine.accent_prefix must be set"))
	}
	if len(e.GridTargets) != 3 {
		errs = append(errs, fmt.Errorf("engine.grid_targets must name 3 targets, got %d", len(e.GridTargets)))
	} else {
		for i, target := range e.GridTargets {
			if target == "" {
				errs = append(errs, fmt.Errorf("engine.grid_targets[%d] must be set", i))
			}
		}
	}
	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	for _, sink := range c.Logging.Sinks {
		switch sink {
		case "console":
		case "json":
			if c.Logging.JSONPath == "" {
				errs = append(errs, errors.New("logging.json_path must be set when the json sink is enabled"))
			}
		case "sqlite":
			if c.Logging.SQLitePath == "" {
				errs = append(errs, errors.New("logging.sqlite_path must be set when the sqlite sink is enabled"))
			}
		default:
			errs = append(errs, fmt.Errorf("logging.sinks: unknown sink %q", sink))
		}
	}
	if c.Logging.BufferSize <= 0 {
		errs = append(errs, errors.New("logging.buffer_size must be positive"))
	}
	return errs
}

func ensurePositive(values map[string]float64) []error {
	var errs []error
	for name, value := range values {
		if !(value > 0) || math.IsInf(value, 0) {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	return errs
}
