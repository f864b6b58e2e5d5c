// Package sim runs the authoritative loop: a single goroutine that owns the
// world, the engine and every session, fed by commands from transport goroutines.
package sim

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"intersection/server/internal/engine"
	"intersection/server/internal/state"
	"intersection/server/internal/synth"
	"intersection/server/internal/telemetry"
	"intersection/server/internal/world"
	"intersection/server/logging"
	loggingNetwork "intersection/server/logging/network"
	loggingSimulation "intersection/server/logging/simulation"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"

	dropReasonSlowConsumer = "slow_consumer"
	dropReasonShutdown     = "shutdown"

	sessionDroppedMetricKey   = "sim_sessions_dropped_total"
	collisionEventsMetricKey  = "sim_collision_events_total"
	motionTickMetricKey       = "sim_motion_tick"
	broadcastBytesMetricKey   = "sim_broadcast_bytes_total"
	tickOverrunMetricKey      = "sim_tick_overrun_total"
	commandsAppliedMetricKey  = "sim_commands_applied_total"
	commandsRejectedMetricKey = "sim_commands_rejected_total"
)

var (
	// ErrStopped is returned when the loop is no longer accepting connections.
	ErrStopped = errors.New("sim: loop stopped")
	// ErrAlreadyRunning is returned when Run is invoked twice.
	ErrAlreadyRunning = errors.New("sim: loop already running")
)

// Deps carries the state and infrastructure owned by the loop.
type Deps struct {
	World      *world.World
	Engine     *engine.Engine
	Translator *synth.Translator
	Clock      logging.Clock
	Publisher  logging.Publisher
	Logger     telemetry.Logger
	Metrics    telemetry.Metrics
}

// LoopHooks observe loop activity. All hooks run on the loop goroutine except
// OnCommandDrop and OnQueueWarning, which run on the submitting goroutine.
type LoopHooks struct {
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
	AfterMotion    func(MotionResult)
}

// MotionResult summarises one motion step.
type MotionResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	Collisions   int
}

type sessionEntry struct {
	session Session
	role    state.Role
	fresh   bool
}

// Loop owns all mutable simulation state. Only Enqueue, Connect, Disconnect
// and Diagnostics may be called from other goroutines.
type Loop struct {
	cfg        LoopConfig
	world      *world.World
	engine     *engine.Engine
	translator *synth.Translator
	clock      logging.Clock
	publisher  logging.Publisher
	logger     telemetry.Logger
	metrics    telemetry.Metrics
	hooks      LoopHooks

	buffer  *CommandBuffer
	control chan Command
	dropped atomic.Uint64

	running  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once

	sessions        map[string]*sessionEntry
	lastMotion      time.Time
	hasMotion       bool
	overrunStreak   uint64
	droppedSessions uint64
	diagnostics     atomic.Pointer[Diagnostics]
}

// NewLoop validates the configuration and wires the loop to its dependencies.
func NewLoop(cfg LoopConfig, deps Deps, hooks LoopHooks) (*Loop, error) {
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.World == nil {
		return nil, errors.New("sim: world is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("sim: engine is required")
	}
	if deps.Translator == nil {
		deps.Translator = synth.NewTranslator()
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.DiscardLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.Discard()
	}
	return &Loop{
		cfg:        cfg,
		world:      deps.World,
		engine:     deps.Engine,
		translator: deps.Translator,
		clock:      deps.Clock,
		publisher:  deps.Publisher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		hooks:      hooks,
		buffer:     NewCommandBuffer(cfg.CommandCapacity, cfg.PerActorLimit, deps.Metrics),
		control:    make(chan Command, cfg.ControlCapacity),
		done:       make(chan struct{}),
		sessions:   make(map[string]*sessionEntry),
	}, nil
}

// Config returns the normalised loop configuration.
func (l *Loop) Config() LoopConfig {
	return l.cfg
}

// Enqueue stages a client intent, enforcing per-actor throttling and capacity limits.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = l.clock.Now()
	}
	reason, length := l.buffer.Push(cmd)
	if reason != "" {
		l.reportDrop(reason, cmd)
		return false, reason
	}
	if step := l.cfg.WarningStep; step > 0 && length >= step && length%step == 0 && l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
	return true, ""
}

// Pending reports the number of staged intents.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Connect registers a session with the loop and returns its identifier.
func (l *Loop) Connect(ctx context.Context, role state.Role, session Session) (string, error) {
	if session == nil {
		return "", errors.New("sim: session is required")
	}
	reply := make(chan string, 1)
	cmd := Command{
		Type:     CommandConnect,
		IssuedAt: l.clock.Now(),
		Connect:  &ConnectCommand{Role: role, Session: session, Reply: reply},
	}
	if err := l.submitControl(ctx, cmd); err != nil {
		return "", err
	}
	select {
	case id := <-reply:
		return id, nil
	case <-l.done:
		return "", ErrStopped
	case <-ctx.Done():
		go func() {
			select {
			case id := <-reply:
				_ = l.Disconnect(id, "abandoned")
			case <-l.done:
			}
		}()
		return "", ctx.Err()
	}
}

// Disconnect removes a connection. It blocks until the loop accepts the request.
func (l *Loop) Disconnect(id, reason string) error {
	if id == "" {
		return nil
	}
	return l.submitControl(context.Background(), Command{
		Type:     CommandDisconnect,
		ActorID:  id,
		IssuedAt: l.clock.Now(),
		Reason:   reason,
	})
}

// Diagnostics returns the summary published after the latest broadcast.
func (l *Loop) Diagnostics() Diagnostics {
	if l == nil {
		return Diagnostics{}
	}
	if snapshot := l.diagnostics.Load(); snapshot != nil {
		return *snapshot
	}
	return Diagnostics{
		MotionRate:    l.cfg.MotionRate,
		BroadcastRate: l.cfg.BroadcastRate,
		SelfRate:      l.cfg.SelfRate,
	}
}

// Run drives the motion, broadcast and self tickers until ctx is cancelled.
// Every session is closed on return.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.doneOnce.Do(func() { close(l.done) })

	motion := time.NewTicker(time.Second / time.Duration(l.cfg.MotionRate))
	defer motion.Stop()
	broadcast := time.NewTicker(time.Second / time.Duration(l.cfg.BroadcastRate))
	defer broadcast.Stop()
	self := time.NewTicker(time.Second / time.Duration(l.cfg.SelfRate))
	defer self.Stop()

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case cmd := <-l.control:
			l.apply(cmd)
		case <-motion.C:
			l.processCommands()
			l.stepMotion(l.clock.Now())
		case <-broadcast.C:
			l.broadcastState(l.clock.Now())
		case <-self.C:
			l.broadcastSelf(l.clock.Now())
		}
	}
}

func (l *Loop) submitControl(ctx context.Context, cmd Command) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.control <- cmd:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) processCommands() {
	for _, cmd := range l.buffer.Drain() {
		l.apply(cmd)
	}
}

func (l *Loop) apply(cmd Command) {
	l.metricAdd(commandsAppliedMetricKey, 1)
	switch cmd.Type {
	case CommandConnect:
		l.connect(cmd)
	case CommandRespawn:
		l.world.Respawn(cmd.ActorID)
	case CommandIntent:
		if cmd.Intent != nil {
			l.world.SetIntent(cmd.ActorID, cmd.Intent.VX, cmd.Intent.VY)
		}
	case CommandMeta:
		if cmd.Meta != nil {
			l.world.SetMeta(cmd.ActorID, world.Meta{
				Name:         cmd.Meta.Name,
				ScreenWidth:  cmd.Meta.ScreenWidth,
				ScreenHeight: cmd.Meta.ScreenHeight,
			})
		}
	case CommandHeartbeat:
		l.heartbeat(cmd)
	case CommandParam:
		l.relayParam(cmd)
	case CommandDisconnect:
		l.removeSession(cmd.ActorID, false)
	}
}

func (l *Loop) connect(cmd Command) {
	request := cmd.Connect
	if request == nil || request.Session == nil {
		return
	}
	id := l.world.Connect(request.Role)
	role, _ := l.world.Role(id)
	l.sessions[id] = &sessionEntry{
		session: request.Session,
		role:    role,
		fresh:   role == state.RoleObserver,
	}
	cfg := l.world.Config()
	l.sendFrame(id, WelcomeFrame{
		Ver:  ProtocolVersion,
		Type: FrameWelcome,
		ID:   id,
		Role: role,
		World: WorldInfo{
			Width:            cfg.Width,
			Height:           cfg.Height,
			Radius:           cfg.Radius,
			MaxSpeed:         cfg.MaxSpeed,
			MotionRate:       l.cfg.MotionRate,
			BroadcastRate:    l.cfg.BroadcastRate,
			SelfRate:         l.cfg.SelfRate,
			HeartbeatTimeout: cfg.HeartbeatTimeout.Milliseconds(),
		},
	})
	if request.Reply != nil {
		request.Reply <- id
	}
}

func (l *Loop) heartbeat(cmd Command) {
	if !l.world.Heartbeat(cmd.ActorID) {
		return
	}
	now := cmd.IssuedAt
	var clientSent int64
	if cmd.Heartbeat != nil {
		if !cmd.Heartbeat.ReceivedAt.IsZero() {
			now = cmd.Heartbeat.ReceivedAt
		}
		clientSent = cmd.Heartbeat.ClientSent
	}
	if now.IsZero() {
		now = l.clock.Now()
	}
	var rtt int64
	if clientSent > 0 {
		if delta := now.UnixMilli() - clientSent; delta > 0 {
			rtt = delta
		}
	}
	l.sendFrame(cmd.ActorID, HeartbeatFrame{
		Ver:        ProtocolVersion,
		Type:       FrameHeartbeat,
		ServerTime: now.UnixMilli(),
		ClientTime: clientSent,
		RTTMillis:  rtt,
	})
}

func (l *Loop) relayParam(cmd Command) {
	if cmd.Param == nil || !l.world.Heartbeat(cmd.ActorID) {
		return
	}
	data, ok := l.encode(ParamFrame{
		Ver:   ProtocolVersion,
		Type:  FrameParam,
		Name:  cmd.Param.Name,
		Value: cmd.Param.Value,
		From:  cmd.ActorID,
	})
	if !ok {
		return
	}
	for _, id := range l.sessionIDs() {
		if id != cmd.ActorID {
			l.send(id, data)
		}
	}
}

// stepMotion integrates motion and then detects collisions as one step.
func (l *Loop) stepMotion(now time.Time) {
	budget := time.Second / time.Duration(l.cfg.MotionRate)
	budgetSeconds := budget.Seconds()
	maxDt := budgetSeconds * float64(l.cfg.CatchupMaxTicks)

	dt := budgetSeconds
	clamped := false
	if l.hasMotion {
		dt = now.Sub(l.lastMotion).Seconds()
		if dt <= 0 {
			dt = budgetSeconds
		} else if dt > maxDt {
			dt = maxDt
			clamped = true
		}
	}
	l.lastMotion = now
	l.hasMotion = true

	start := l.clock.Now()
	l.world.Tick(dt)
	events := l.world.DetectCollisions()
	duration := l.clock.Now().Sub(start)

	tick := l.world.CurrentTick()
	l.metricStore(motionTickMetricKey, tick)
	if len(events) > 0 {
		l.metricAdd(collisionEventsMetricKey, uint64(len(events)))
	}
	if duration > budget {
		l.overrunStreak++
		l.metricAdd(tickOverrunMetricKey, 1)
		loggingSimulation.TickBudgetOverrun(context.Background(), l.publisher, tick, loggingSimulation.TickBudgetOverrunPayload{
			Phase:          "motion",
			DurationMillis: duration.Milliseconds(),
			BudgetMillis:   budget.Milliseconds(),
			Ratio:          float64(duration) / float64(budget),
			Streak:         l.overrunStreak,
		}, nil)
	} else {
		l.overrunStreak = 0
	}

	if l.hooks.AfterMotion != nil {
		l.hooks.AfterMotion(MotionResult{
			Tick:         tick,
			Now:          now,
			Delta:        dt,
			Duration:     duration,
			Budget:       budget,
			ClampedDelta: clamped,
			Collisions:   len(events),
		})
	}
}

// broadcastState sends the general frame to every session, then advances the
// engine and delivers its payload to observers.
func (l *Loop) broadcastState(now time.Time) {
	players := l.world.Snapshot()
	events := l.world.DrainEvents()
	if events == nil {
		events = []state.CollisionEvent{}
	}
	pairs := l.world.Pairs()
	data, ok := l.encode(StateFrame{
		Ver:        ProtocolVersion,
		Type:       FrameState,
		Tick:       l.world.CurrentTick(),
		Players:    players,
		Pairs:      pairs,
		Events:     events,
		Population: l.world.Population(),
		Observers:  l.world.Observers(),
		ServerTime: now.UnixMilli(),
	})
	if ok {
		for _, id := range l.sessionIDs() {
			l.send(id, data)
		}
	}

	// Sessions dropped during the fan-out have left the world; the engine
	// sees only who is still connected.
	players = l.world.Snapshot()
	payload := l.engine.Tick(players, now)
	instructions := l.translator.Translate(payload)
	var diff []byte
	for _, id := range l.sessionIDs() {
		entry, ok := l.sessions[id]
		if !ok || entry.role != state.RoleObserver {
			continue
		}
		if entry.fresh {
			entry.fresh = false
			l.sendFrame(id, EngineFrame{
				Ver:          ProtocolVersion,
				Type:         FrameEngine,
				Full:         true,
				Payload:      payload,
				Instructions: synth.Full(payload),
			})
			continue
		}
		if diff == nil {
			encoded, ok := l.encode(EngineFrame{
				Ver:          ProtocolVersion,
				Type:         FrameEngine,
				Payload:      payload,
				Instructions: instructions,
			})
			if !ok {
				break
			}
			diff = encoded
		}
		l.send(id, diff)
	}

	l.publishDiagnostics(now, payload.Tick, len(players), len(pairs))
}

// broadcastSelf sends each spawned participant its own body.
func (l *Loop) broadcastSelf(now time.Time) {
	for _, id := range l.sessionIDs() {
		entry, ok := l.sessions[id]
		if !ok || entry.role != state.RoleParticipant {
			continue
		}
		player, ok := l.world.Participant(id)
		if !ok {
			continue
		}
		l.sendFrame(id, SelfFrame{
			Ver:        ProtocolVersion,
			Type:       FrameSelf,
			Player:     player,
			ServerTime: now.UnixMilli(),
		})
	}
}

func (l *Loop) sendFrame(id string, frame any) {
	data, ok := l.encode(frame)
	if !ok {
		return
	}
	l.send(id, data)
}

func (l *Loop) send(id string, data []byte) {
	entry, ok := l.sessions[id]
	if !ok {
		return
	}
	if entry.session.Send(data) {
		l.metricAdd(broadcastBytesMetricKey, uint64(len(data)))
		return
	}
	l.droppedSessions++
	l.metricAdd(sessionDroppedMetricKey, 1)
	loggingNetwork.SubscriberDropped(context.Background(), l.publisher, l.world.CurrentTick(), logging.EntityRef{ID: id, Kind: entityKind(entry.role)}, loggingNetwork.SubscriberDroppedPayload{
		Reason: dropReasonSlowConsumer,
	}, nil)
	l.removeSession(id, true)
}

func (l *Loop) removeSession(id string, closeSession bool) {
	entry, ok := l.sessions[id]
	if ok {
		delete(l.sessions, id)
		if closeSession {
			entry.session.Close(dropReasonSlowConsumer)
		}
	}
	l.world.Disconnect(id)
}

func (l *Loop) shutdown() {
	for _, id := range l.sessionIDs() {
		entry := l.sessions[id]
		delete(l.sessions, id)
		entry.session.Close(dropReasonShutdown)
		l.world.Disconnect(id)
	}
}

func (l *Loop) sessionIDs() []string {
	ids := make([]string, 0, len(l.sessions))
	for id := range l.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l *Loop) encode(frame any) ([]byte, bool) {
	data, err := json.Marshal(frame)
	if err != nil {
		l.logger.Printf("failed to encode frame: %v", err)
		return nil, false
	}
	return data, true
}

func (l *Loop) publishDiagnostics(now time.Time, engineTick uint64, spawned, pairs int) {
	snapshot := &Diagnostics{
		Tick:                l.world.CurrentTick(),
		EngineTick:          engineTick,
		ServerTime:          now,
		Population:          l.world.Population(),
		Spawned:             spawned,
		Observers:           l.world.Observers(),
		Sessions:            len(l.sessions),
		ActivePairs:         pairs,
		PendingCommands:     l.buffer.Len(),
		DroppedCommands:     l.dropped.Load(),
		DroppedSessions:     l.droppedSessions,
		OverrunStreak:       l.overrunStreak,
		AccentHolder:        l.engine.Holder(),
		ProgressionDistance: l.engine.Sequencer().ProgressionDistance(),
		MotionRate:          l.cfg.MotionRate,
		BroadcastRate:       l.cfg.BroadcastRate,
		SelfRate:            l.cfg.SelfRate,
	}
	l.diagnostics.Store(snapshot)
}

func (l *Loop) reportDrop(reason string, cmd Command) {
	count := l.dropped.Add(1)
	l.metricAdd(commandsRejectedMetricKey, 1)
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if count&(count-1) == 0 {
		l.logger.Printf(
			"[backpressure] dropping command actor=%s type=%s reason=%s count=%d limit=%d",
			cmd.ActorID,
			cmd.Type,
			reason,
			count,
			l.cfg.PerActorLimit,
		)
	}
}

func (l *Loop) metricAdd(key string, delta uint64) {
	l.metrics.Add(key, delta)
}

func (l *Loop) metricStore(key string, value uint64) {
	l.metrics.Store(key, value)
}

func entityKind(role state.Role) logging.EntityKind {
	if role == state.RoleObserver {
		return logging.EntityKindObserver
	}
	return logging.EntityKindParticipant
}
