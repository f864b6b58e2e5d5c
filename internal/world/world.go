// Package world owns the authoritative set of connections and participant bodies.
// It is not safe for concurrent use: the simulation loop is its only caller.
package world

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"intersection/server/internal/state"
	"intersection/server/logging"
	loggingLifecycle "intersection/server/logging/lifecycle"
)

const maxPendingEvents = 1024

type record struct {
	id            string
	role          state.Role
	name          string
	screenW       float64
	screenH       float64
	spawned       bool
	stalled       bool
	x, y          float64
	vx, vy        float64
	desiredX      float64
	desiredY      float64
	radius        float64
	mass          float64
	lastHeartbeat time.Time
}

func (r *record) snapshot() state.Participant {
	return state.Participant{
		ID:      r.id,
		Name:    r.name,
		X:       r.x,
		Y:       r.y,
		VX:      r.vx,
		VY:      r.vy,
		Radius:  r.radius,
		Mass:    r.mass,
		Stalled: r.stalled,
	}
}

// Meta is the display metadata reported by a client.
type Meta struct {
	Name         string  `json:"name,omitempty"`
	ScreenWidth  float64 `json:"screenWidth,omitempty"`
	ScreenHeight float64 `json:"screenHeight,omitempty"`
}

// World is the authoritative simulator state for one process.
type World struct {
	cfg       Config
	clock     logging.Clock
	rng       *rand.Rand
	publisher logging.Publisher
	newID     func() string

	records map[string]*record
	pairs   map[pairKey]*pairState
	pending []state.CollisionEvent
	tick    uint64
}

// Option customises a World at construction.
type Option func(*World)

// WithClock injects the time source used for heartbeats and collision cooldowns.
func WithClock(clock logging.Clock) Option {
	return func(w *World) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithRand injects the random source used for spawn positions.
func WithRand(rng *rand.Rand) Option {
	return func(w *World) {
		if rng != nil {
			w.rng = rng
		}
	}
}

// WithPublisher routes lifecycle and collision events.
func WithPublisher(pub logging.Publisher) Option {
	return func(w *World) {
		if pub != nil {
			w.publisher = pub
		}
	}
}

// WithIDGenerator replaces the uuid-based identifier source.
func WithIDGenerator(gen func() string) Option {
	return func(w *World) {
		if gen != nil {
			w.newID = gen
		}
	}
}

// New constructs an empty world.
func New(cfg Config, opts ...Option) *World {
	w := &World{
		cfg:       cfg.normalized(),
		clock:     logging.SystemClock{},
		publisher: logging.NopPublisher(),
		newID:     uuid.NewString,
		records:   make(map[string]*record),
		pairs:     make(map[pairKey]*pairState),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.rng == nil {
		w.rng = rand.New(rand.NewSource(w.clock.Now().UnixNano()))
	}
	return w
}

// Config returns the normalised world configuration.
func (w *World) Config() Config {
	return w.cfg
}

// CurrentTick reports the number of motion ticks integrated so far.
func (w *World) CurrentTick() uint64 {
	return w.tick
}

// Connect registers a new connection and returns its identifier.
func (w *World) Connect(role state.Role) string {
	if role != state.RoleObserver {
		role = state.RoleParticipant
	}
	id := w.newID()
	for _, exists := w.records[id]; exists; _, exists = w.records[id] {
		id = w.newID()
	}
	w.records[id] = &record{
		id:            id,
		role:          role,
		radius:        w.cfg.Radius,
		mass:          w.cfg.Mass,
		lastHeartbeat: w.clock.Now(),
	}

	kind := logging.EntityKindParticipant
	if role == state.RoleObserver {
		kind = logging.EntityKindObserver
	}
	loggingLifecycle.Connected(context.Background(), w.publisher, w.tick, logging.EntityRef{ID: id, Kind: kind}, loggingLifecycle.ConnectedPayload{
		Role:       string(role),
		Population: w.Population(),
	}, nil)
	return id
}

// Role reports the role of a connection.
func (w *World) Role(id string) (state.Role, bool) {
	rec, ok := w.records[id]
	if !ok {
		return "", false
	}
	return rec.role, true
}

// Respawn places a participant at a random position with zero velocity.
func (w *World) Respawn(id string) bool {
	rec, ok := w.participant(id)
	if !ok {
		return false
	}
	rec.x, rec.y = w.spawnPoint(rec.radius)
	rec.vx, rec.vy = 0, 0
	rec.desiredX, rec.desiredY = 0, 0
	rec.spawned = true
	w.touch(rec)

	loggingLifecycle.Respawned(context.Background(), w.publisher, w.tick, logging.ParticipantRef(id), loggingLifecycle.RespawnedPayload{
		SpawnX: rec.x,
		SpawnY: rec.y,
		Name:   rec.name,
	}, nil)
	return true
}

// SetIntent stores the desired velocity, clamped to the maximum speed.
func (w *World) SetIntent(id string, vx, vy float64) bool {
	rec, ok := w.participant(id)
	if !ok {
		return false
	}
	vx = finiteOrZero(vx)
	vy = finiteOrZero(vy)
	if length := math.Hypot(vx, vy); length > w.cfg.MaxSpeed {
		scale := w.cfg.MaxSpeed / length
		vx *= scale
		vy *= scale
	}
	rec.desiredX = vx
	rec.desiredY = vy
	w.touch(rec)
	return true
}

// SetMeta records display-name and screen metadata. Observers may report it too.
func (w *World) SetMeta(id string, meta Meta) bool {
	rec, ok := w.records[id]
	if !ok {
		return false
	}
	rec.name = normalizeName(meta.Name)
	rec.screenW = nonNegative(meta.ScreenWidth)
	rec.screenH = nonNegative(meta.ScreenHeight)
	w.touch(rec)
	return true
}

// Meta returns the stored metadata for a connection.
func (w *World) Meta(id string) (Meta, bool) {
	rec, ok := w.records[id]
	if !ok {
		return Meta{}, false
	}
	return Meta{Name: rec.name, ScreenWidth: rec.screenW, ScreenHeight: rec.screenH}, true
}

// Heartbeat refreshes the liveness timestamp of a connection.
func (w *World) Heartbeat(id string) bool {
	rec, ok := w.records[id]
	if !ok {
		return false
	}
	w.touch(rec)
	return true
}

// Tick integrates motion for every live spawned participant. Participants whose
// heartbeat lapsed are frozen in place until they are heard from again.
func (w *World) Tick(dt float64) {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		dt = 0
	}
	now := w.clock.Now()
	w.tick++
	blend := w.cfg.VelocityBlend

	for _, rec := range w.records {
		if !rec.spawned {
			continue
		}
		silent := now.Sub(rec.lastHeartbeat)
		if silent > w.cfg.HeartbeatTimeout {
			if !rec.stalled {
				rec.stalled = true
				loggingLifecycle.Stalled(context.Background(), w.publisher, w.tick, logging.ParticipantRef(rec.id), loggingLifecycle.StalledPayload{
					SilentMillis: silent.Milliseconds(),
				}, nil)
			}
			rec.vx, rec.vy = 0, 0
			continue
		}

		rec.vx += (rec.desiredX - rec.vx) * blend
		rec.vy += (rec.desiredY - rec.vy) * blend
		rec.x += rec.vx * dt
		rec.y += rec.vy * dt

		minX, maxX := rec.radius, w.cfg.Width-rec.radius
		minY, maxY := rec.radius, w.cfg.Height-rec.radius
		if rec.x < minX || rec.x > maxX {
			rec.x = clamp(rec.x, minX, maxX)
			rec.vx = 0
		}
		if rec.y < minY || rec.y > maxY {
			rec.y = clamp(rec.y, minY, maxY)
			rec.vy = 0
		}
	}
}

// Disconnect removes a connection and every collision pair that references it.
func (w *World) Disconnect(id string) bool {
	rec, ok := w.records[id]
	if !ok {
		return false
	}
	delete(w.records, id)
	for key := range w.pairs {
		if key.a == id || key.b == id {
			delete(w.pairs, key)
		}
	}
	if len(w.pending) > 0 {
		kept := w.pending[:0]
		for _, event := range w.pending {
			if event.A != id && event.B != id {
				kept = append(kept, event)
			}
		}
		w.pending = kept
	}

	kind := logging.EntityKindParticipant
	if rec.role == state.RoleObserver {
		kind = logging.EntityKindObserver
	}
	loggingLifecycle.Disconnected(context.Background(), w.publisher, w.tick, logging.EntityRef{ID: id, Kind: kind}, loggingLifecycle.DisconnectedPayload{
		Reason:     "disconnect",
		Population: w.Population(),
	}, nil)
	return true
}

// Snapshot returns every spawned participant ordered by identifier.
func (w *World) Snapshot() []state.Participant {
	players := make([]state.Participant, 0, len(w.records))
	for _, rec := range w.records {
		if rec.role != state.RoleParticipant || !rec.spawned {
			continue
		}
		players = append(players, rec.snapshot())
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players
}

// Participant returns the snapshot of a single spawned participant.
func (w *World) Participant(id string) (state.Participant, bool) {
	rec, ok := w.participant(id)
	if !ok || !rec.spawned {
		return state.Participant{}, false
	}
	return rec.snapshot(), true
}

// Population counts connected participants, spawned or not. Observers are excluded.
func (w *World) Population() int {
	count := 0
	for _, rec := range w.records {
		if rec.role == state.RoleParticipant {
			count++
		}
	}
	return count
}

// Observers returns the number of connected observers.
func (w *World) Observers() int {
	return len(w.records) - w.Population()
}

// Connected reports whether id is a live connection.
func (w *World) Connected(id string) bool {
	_, ok := w.records[id]
	return ok
}

// LastHeartbeat reports when a connection was last heard from.
func (w *World) LastHeartbeat(id string) (time.Time, bool) {
	rec, ok := w.records[id]
	if !ok {
		return time.Time{}, false
	}
	return rec.lastHeartbeat, true
}

func (w *World) participant(id string) (*record, bool) {
	rec, ok := w.records[id]
	if !ok || rec.role != state.RoleParticipant {
		return nil, false
	}
	return rec, true
}

func (w *World) touch(rec *record) {
	rec.lastHeartbeat = w.clock.Now()
	if rec.stalled {
		rec.stalled = false
		loggingLifecycle.Resumed(context.Background(), w.publisher, w.tick, logging.ParticipantRef(rec.id), nil)
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func nonNegative(v float64) float64 {
	v = finiteOrZero(v)
	if v < 0 {
		return 0
	}
	return v
}
