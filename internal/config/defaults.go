package config

const (
	defaultAddr              = ":8080"
	defaultLockPath          = "intersection.lock"
	defaultSendQueue         = 64
	defaultShutdownTimeoutMS = 5000

	defaultWorldWidth         = 1000
	defaultWorldHeight        = 1000
	defaultRadius             = 20
	defaultMass               = 1
	defaultMaxSpeed           = 300
	defaultVelocityBlend      = 0.2
	defaultHeartbeatTimeoutMS = 5000

	defaultMotionRateHz    = 60
	defaultBroadcastRateHz = 15
	defaultSelfRateHz      = 30
	defaultCatchupMaxTicks = 3
	defaultCommandCapacity = 1024
	defaultPerActorLimit   = 32

	defaultCollisionRadius     = 40
	defaultCollisionCooldownMS = 1000

	defaultMaxDeltaMS      = 200
	defaultGateRadius      = 80
	defaultGateHoldMS      = 300
	defaultAccentMargin    = 40
	defaultAccentHoldMS    = 750
	defaultAccentTauMS     = 120
	defaultCutoffTauMS     = 250
	defaultResonanceTauMS  = 400
	defaultCutoffBase      = 400
	defaultCutoffPitchSpan = 1200
	defaultCutoffLeadSpan  = 2400
	defaultCutoffSlew      = 150
	defaultResonanceBase   = 0.2
	defaultResonanceSpan   = 0.6
	defaultGateParam       = "gate"
	defaultAccentPrefix    = "accent"

	defaultLogLevel   = "info"
	defaultBufferSize = 512
)

var defaultGridTargets = []string{"grid.bass", "grid.baritone", "grid.tenor"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Addr:              defaultAddr,
			LockPath:          defaultLockPath,
			SendQueue:         defaultSendQueue,
			ShutdownTimeoutMS: defaultShutdownTimeoutMS,
		},
		World: World{
			Width:              defaultWorldWidth,
			Height:             defaultWorldHeight,
			Radius:             defaultRadius,
			Mass:               defaultMass,
			MaxSpeed:           defaultMaxSpeed,
			VelocityBlend:      defaultVelocityBlend,
			HeartbeatTimeoutMS: defaultHeartbeatTimeoutMS,
		},
		Loop: Loop{
			MotionRateHz:    defaultMotionRateHz,
			BroadcastRateHz: defaultBroadcastRateHz,
			SelfRateHz:      defaultSelfRateHz,
			CatchupMaxTicks: defaultCatchupMaxTicks,
			CommandCapacity: defaultCommandCapacity,
			PerActorLimit:   defaultPerActorLimit,
		},
		Collision: Collision{
			Radius:     defaultCollisionRadius,
			CooldownMS: defaultCollisionCooldownMS,
		},
		Engine: Engine{
			MaxDeltaMS:      defaultMaxDeltaMS,
			GateRadius:      defaultGateRadius,
			GateHoldMS:      defaultGateHoldMS,
			AccentMargin:    defaultAccentMargin,
			AccentHoldMS:    defaultAccentHoldMS,
			AccentTauMS:     defaultAccentTauMS,
			CutoffTauMS:     defaultCutoffTauMS,
			ResonanceTauMS:  defaultResonanceTauMS,
			CutoffBase:      defaultCutoffBase,
			CutoffPitchSpan: defaultCutoffPitchSpan,
			CutoffLeadSpan:  defaultCutoffLeadSpan,
			CutoffSlew:      defaultCutoffSlew,
			ResonanceBase:   defaultResonanceBase,
			ResonanceSpan:   defaultResonanceSpan,
			GateParam:       defaultGateParam,
			AccentPrefix:    defaultAccentPrefix,
			GridTargets:     append([]string(nil), defaultGridTargets...),
		},
		Logging: Logging{
			Level:      defaultLogLevel,
			Sinks:      []string{"console"},
			Color:      true,
			BufferSize: defaultBufferSize,
		},
	}
}
