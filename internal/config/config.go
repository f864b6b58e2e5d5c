package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"intersection/server/internal/engine"
	"intersection/server/internal/harmony"
	"intersection/server/internal/sim"
	"intersection/server/internal/world"
	"intersection/server/logging"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Server contains the listener and process settings.
type Server struct {
	Addr              string `toml:"addr"`
	ClientDir         string `toml:"client_dir"`
	LockPath          string `toml:"lock_path"`
	SendQueue         int    `toml:"send_queue"`
	ShutdownTimeoutMS int    `toml:"shutdown_timeout_ms"`
}

// World contains the physical constants of the shared space.
type World struct {
	Width              float64 `toml:"width"`
	Height             float64 `toml:"height"`
	Radius             float64 `toml:"radius"`
	Mass               float64 `toml:"mass"`
	MaxSpeed           float64 `toml:"max_speed"`
	VelocityBlend      float64 `toml:"velocity_blend"`
	HeartbeatTimeoutMS int     `toml:"heartbeat_timeout_ms"`
}

// Loop contains the tick rates and command intake limits.
type Loop struct {
	MotionRateHz    int `toml:"motion_rate_hz"`
	BroadcastRateHz int `toml:"broadcast_rate_hz"`
	SelfRateHz      int `toml:"self_rate_hz"`
	CatchupMaxTicks int `toml:"catchup_max_ticks"`
	CommandCapacity int `toml:"command_capacity"`
	PerActorLimit   int `toml:"per_actor_limit"`
}

// Collision contains the pair detection settings.
type Collision struct {
	Radius     float64 `toml:"radius"`
	CooldownMS int     `toml:"cooldown_ms"`
}

// Engine contains the orchestrator tuning.
type Engine struct {
	MaxDeltaMS      int      `toml:"max_delta_ms"`
	GateRadius      float64  `toml:"gate_radius"`
	GateHoldMS      int      `toml:"gate_hold_ms"`
	AccentMargin    float64  `toml:"accent_margin"`
	AccentHoldMS    int      `toml:"accent_hold_ms"`
	AccentTauMS     int      `toml:"accent_tau_ms"`
	CutoffTauMS     int      `toml:"cutoff_tau_ms"`
	ResonanceTauMS  int      `toml:"resonance_tau_ms"`
	CutoffBase      float64  `toml:"cutoff_base"`
	CutoffPitchSpan float64  `toml:"cutoff_pitch_span"`
	CutoffLeadSpan  float64  `toml:"cutoff_lead_span"`
	CutoffSlew      float64  `toml:"cutoff_slew"`
	ResonanceBase   float64  `toml:"resonance_base"`
	ResonanceSpan   float64  `toml:"resonance_span"`
	GateParam       string   `toml:"gate_param"`
	AccentPrefix    string   `toml:"accent_prefix"`
	GridTargets     []string `toml:"grid_targets"`
}

// Harmony contains the placer settings.
type Harmony struct {
	EnforceResolution bool  `toml:"enforce_resolution"`
	Seed              int64 `toml:"seed"`
}

// Mapping points at the rule asset. An empty path uses the embedded rules.
type Mapping struct {
	RulesPath string `toml:"rules_path"`
}

// Logging contains event routing settings.
type Logging struct {
	Level      string   `toml:"level"`
	Sinks      []string `toml:"sinks"`
	Color      bool     `toml:"color"`
	BufferSize int      `toml:"buffer_size"`
	JSONPath   string   `toml:"json_path"`
	SQLitePath string   `toml:"sqlite_path"`
}

// Config encapsulates every server setting.
//
// Configuration sections by subsystem:
//   - Server: listener address, static client directory and lock file
//   - World: bounds, body size, speed limit and heartbeat timeout
//   - Loop: motion, broadcast and self tick rates
//   - Collision: detection radius and event cooldown
//   - Engine: proximity gate, fastest-mover accent and smoothing
//   - Harmony: placer options
//   - Mapping: rule asset location
//   - Logging: level, sinks and sink destinations
type Config struct {
	Server    Server    `toml:"server"`
	World     World     `toml:"world"`
	Loop      Loop      `toml:"loop"`
	Collision Collision `toml:"collision"`
	Engine    Engine    `toml:"engine"`
	Harmony   Harmony   `toml:"harmony"`
	Mapping   Mapping   `toml:"mapping"`
	Logging   Logging   `toml:"logging"`
}

// Load parses an optional TOML file over the defaults, applies environment
// overrides and validates the result. A missing file is not an error; the
// boolean reports whether one was read.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	exists := false
	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, false, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			decoder := toml.NewDecoder(file)
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&cfg); err != nil {
				return nil, false, fmt.Errorf("parse config: %w", err)
			}
			exists = true
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, exists, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, exists, err
	}
	return &cfg, exists, nil
}

// Sample returns the annotated sample configuration.
func Sample() string {
	return sampleConfig
}

// CreateSample writes the sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// WorldConfig converts the world and collision sections.
func (c *Config) WorldConfig() world.Config {
	return world.Config{
		Width:             c.World.Width,
		Height:            c.World.Height,
		Radius:            c.World.Radius,
		Mass:              c.World.Mass,
		MaxSpeed:          c.World.MaxSpeed,
		VelocityBlend:     c.World.VelocityBlend,
		HeartbeatTimeout:  millis(c.World.HeartbeatTimeoutMS),
		CollisionRadius:   c.Collision.Radius,
		CollisionCooldown: millis(c.Collision.CooldownMS),
	}
}

// LoopConfig converts the loop section.
func (c *Config) LoopConfig() sim.LoopConfig {
	cfg := sim.DefaultLoopConfig()
	cfg.MotionRate = c.Loop.MotionRateHz
	cfg.BroadcastRate = c.Loop.BroadcastRateHz
	cfg.SelfRate = c.Loop.SelfRateHz
	cfg.CatchupMaxTicks = c.Loop.CatchupMaxTicks
	cfg.CommandCapacity = c.Loop.CommandCapacity
	cfg.PerActorLimit = c.Loop.PerActorLimit
	return cfg
}

// EngineConfig converts the engine section. The accent lead and the positional
// signals are normalised by the world section.
func (c *Config) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if c.Loop.BroadcastRateHz > 0 {
		cfg.DefaultDelta = time.Second / time.Duration(c.Loop.BroadcastRateHz)
	}
	cfg.MaxDelta = millis(c.Engine.MaxDeltaMS)
	cfg.WorldWidth = c.World.Width
	cfg.WorldHeight = c.World.Height
	cfg.GateRadius = c.Engine.GateRadius
	cfg.GateHold = millis(c.Engine.GateHoldMS)
	cfg.MaxSpeed = c.World.MaxSpeed
	cfg.AccentMargin = c.Engine.AccentMargin
	cfg.AccentHold = millis(c.Engine.AccentHoldMS)
	cfg.AccentTau = millis(c.Engine.AccentTauMS)
	cfg.CutoffTau = millis(c.Engine.CutoffTauMS)
	cfg.ResonanceTau = millis(c.Engine.ResonanceTauMS)
	cfg.CutoffBase = c.Engine.CutoffBase
	cfg.CutoffPitchSpan = c.Engine.CutoffPitchSpan
	cfg.CutoffLeadSpan = c.Engine.CutoffLeadSpan
	cfg.CutoffSlew = c.Engine.CutoffSlew
	cfg.ResonanceBase = c.Engine.ResonanceBase
	cfg.ResonanceSpan = c.Engine.ResonanceSpan
	cfg.GateParam = c.Engine.GateParam
	cfg.AccentPrefix = c.Engine.AccentPrefix
	copy(cfg.GridTargets[:], c.Engine.GridTargets)
	return cfg
}

// HarmonyOptions converts the harmony section.
func (c *Config) HarmonyOptions() harmony.Options {
	return harmony.Options{EnforceResolution: c.Harmony.EnforceResolution}
}

// LoggingConfig converts the logging section.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = append([]string(nil), c.Logging.Sinks...)
	cfg.MinimumSeverity = logging.ParseSeverity(c.Logging.Level)
	cfg.BufferSize = c.Logging.BufferSize
	cfg.Console.UseColor = c.Logging.Color
	cfg.JSON.FilePath = c.Logging.JSONPath
	cfg.SQLite.Path = c.Logging.SQLitePath
	return cfg
}

// ShutdownTimeout returns the graceful shutdown window.
func (c *Config) ShutdownTimeout() time.Duration {
	return millis(c.Server.ShutdownTimeoutMS)
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
