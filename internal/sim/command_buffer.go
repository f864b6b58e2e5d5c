package sim

import (
	"sync"

	"intersection/server/internal/telemetry"
)

const (
	commandBufferOccupancyMetricKey = "sim_command_buffer_occupancy"
	commandBufferOverflowMetricKey  = "sim_command_buffer_overflow_total"
	commandBufferThrottleMetricKey  = "sim_command_buffer_throttled_total"
)

// CommandBuffer stages client intents between transport goroutines and the
// loop. Staging is FIFO in a fixed ring; each actor may hold at most
// perActorLimit entries until the next Drain.
type CommandBuffer struct {
	mu            sync.Mutex
	ring          []Command
	head          int
	count         int
	perActorLimit int
	staged        map[string]int
	metrics       telemetry.Metrics
}

// NewCommandBuffer sizes the ring. A perActorLimit of zero disables throttling.
func NewCommandBuffer(capacity, perActorLimit int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	if perActorLimit < 0 {
		perActorLimit = 0
	}
	if metrics == nil {
		metrics = telemetry.Discard()
	}
	return &CommandBuffer{
		ring:          make([]Command, capacity),
		perActorLimit: perActorLimit,
		staged:        make(map[string]int),
		metrics:       metrics,
	}
}

func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	return len(b.ring)
}

// Push stages cmd. The returned reason is empty on success, otherwise
// CommandRejectQueueLimit or CommandRejectQueueFull. The staged length after
// the call is reported either way.
func (b *CommandBuffer) Push(cmd Command) (string, int) {
	if b == nil {
		return CommandRejectQueueFull, 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	throttled := b.perActorLimit > 0 && cmd.ActorID != ""
	if throttled && b.staged[cmd.ActorID] >= b.perActorLimit {
		b.metrics.Add(commandBufferThrottleMetricKey, 1)
		return CommandRejectQueueLimit, b.count
	}
	if b.count == len(b.ring) {
		b.metrics.Add(commandBufferOverflowMetricKey, 1)
		return CommandRejectQueueFull, b.count
	}

	b.ring[(b.head+b.count)%len(b.ring)] = cmd
	b.count++
	if throttled {
		b.staged[cmd.ActorID]++
	}
	b.metrics.Store(commandBufferOccupancyMetricKey, uint64(b.count))
	return "", b.count
}

// Drain hands every staged command to the caller in arrival order and resets
// the per-actor allowance.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.staged) > 0 {
		clear(b.staged)
	}
	if b.count == 0 {
		return nil
	}

	out := make([]Command, 0, b.count)
	for b.count > 0 {
		out = append(out, b.ring[b.head])
		b.ring[b.head] = Command{}
		b.head = (b.head + 1) % len(b.ring)
		b.count--
	}
	b.metrics.Store(commandBufferOccupancyMetricKey, 0)
	return out
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// StagedFor reports how many commands actor currently holds in the ring.
func (b *CommandBuffer) StagedFor(actor string) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.staged[actor]
}
