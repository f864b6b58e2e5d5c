package world

import (
	"math"
	"time"
)

// Config captures the physical constants of the shared world.
type Config struct {
	Width             float64
	Height            float64
	Radius            float64
	Mass              float64
	MaxSpeed          float64
	VelocityBlend     float64
	HeartbeatTimeout  time.Duration
	CollisionRadius   float64
	CollisionCooldown time.Duration
}

// DefaultConfig returns the world used when no configuration file overrides it.
func DefaultConfig() Config {
	return Config{
		Width:             1000,
		Height:            1000,
		Radius:            20,
		Mass:              1,
		MaxSpeed:          300,
		VelocityBlend:     0.2,
		HeartbeatTimeout:  5 * time.Second,
		CollisionRadius:   40,
		CollisionCooldown: time.Second,
	}
}

// normalized returns a config with defaults applied to unusable values.
func (cfg Config) normalized() Config {
	defaults := DefaultConfig()
	normalized := cfg
	if !positive(normalized.Width) {
		normalized.Width = defaults.Width
	}
	if !positive(normalized.Height) {
		normalized.Height = defaults.Height
	}
	if normalized.Radius < 0 || math.IsNaN(normalized.Radius) {
		normalized.Radius = defaults.Radius
	}
	if normalized.Radius*2 > normalized.Width || normalized.Radius*2 > normalized.Height {
		normalized.Radius = math.Min(normalized.Width, normalized.Height) / 2
	}
	if !positive(normalized.Mass) {
		normalized.Mass = defaults.Mass
	}
	if !positive(normalized.MaxSpeed) {
		normalized.MaxSpeed = defaults.MaxSpeed
	}
	if !positive(normalized.VelocityBlend) || normalized.VelocityBlend > 1 {
		normalized.VelocityBlend = defaults.VelocityBlend
	}
	if normalized.HeartbeatTimeout <= 0 {
		normalized.HeartbeatTimeout = defaults.HeartbeatTimeout
	}
	if !positive(normalized.CollisionRadius) {
		normalized.CollisionRadius = defaults.CollisionRadius
	}
	if normalized.CollisionCooldown < 0 {
		normalized.CollisionCooldown = defaults.CollisionCooldown
	}
	return normalized
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
