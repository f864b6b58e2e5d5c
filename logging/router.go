package logging

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueSize = 512
	minSinkBacklog   = 32
	maxSinkBacklog   = 1024
)

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans published events out to sinks on their own goroutines so the
// simulation loop never blocks on I/O. A full queue drops the event.
type Router struct {
	cfg      Config
	clock    Clock
	fallback *log.Logger
	queue    chan Event
	workers  []*sinkWorker
	metrics  *Metrics
	stop     chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool

	forwarded   atomic.Uint64
	dropped     atomic.Uint64
	nextDropLog atomic.Int64

	typesMu sync.Mutex
	byType  map[EventType]uint64
}

// RouterStats summarises delivery for the diagnostics endpoint.
type RouterStats struct {
	EventsTotal  uint64               `json:"eventsTotal"`
	DroppedTotal uint64               `json:"droppedTotal"`
	ByType       map[string]uint64    `json:"byType,omitempty"`
	Sinks        map[string]SinkStats `json:"sinks,omitempty"`
}

func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	queueSize := cfg.BufferSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	backlog := min(max(queueSize, minSinkBacklog), maxSinkBacklog)
	cfg.Fields = cfg.CloneFields()

	r := &Router{
		cfg:      cfg,
		clock:    clock,
		fallback: log.New(os.Stderr, "[logging] ", log.LstdFlags),
		queue:    make(chan Event, queueSize),
		metrics:  &Metrics{},
		stop:     make(chan struct{}),
		byType:   make(map[EventType]uint64),
	}
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.workers = append(r.workers, newSinkWorker(named.Name, named.Sink, backlog, r.fallback))
	}

	r.wg.Add(1 + len(r.workers))
	go r.dispatch()
	for _, worker := range r.workers {
		go func(w *sinkWorker) {
			defer r.wg.Done()
			w.run()
		}(worker)
	}
	return r, nil
}

func (r *Router) dispatch() {
	defer r.wg.Done()
	defer func() {
		for _, worker := range r.workers {
			close(worker.events)
		}
	}()
	for {
		select {
		case event := <-r.queue:
			r.forward(event)
		case <-r.stop:
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = withDefaultFields(event, r.cfg.Fields)
	r.forwarded.Add(1)

	r.typesMu.Lock()
	r.byType[event.Type]++
	r.typesMu.Unlock()

	for _, worker := range r.workers {
		worker.enqueue(event)
	}
}

// Publish queues event without blocking. Untyped events and events published
// after Close are ignored.
func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.warnDrop(event)
	}
}

func (r *Router) warnDrop(event Event) {
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := r.clock.Now().UnixNano()
	next := r.nextDropLog.Load()
	if now >= next && r.nextDropLog.CompareAndSwap(next, now+interval.Nanoseconds()) {
		r.fallback.Printf("queue full, dropping event type=%s tick=%d (dropped=%d)", event.Type, event.Tick, r.dropped.Load())
	}
}

// Close flushes queued events, waits for sink workers and closes every sink.
// Only the first call has any effect.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stop)

	flushed := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	for _, worker := range r.workers {
		if err := worker.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.forwarded.Load(),
		DroppedTotal: r.dropped.Load(),
	}
	r.typesMu.Lock()
	if len(r.byType) > 0 {
		stats.ByType = make(map[string]uint64, len(r.byType))
		for eventType, count := range r.byType {
			stats.ByType[string(eventType)] = count
		}
	}
	r.typesMu.Unlock()
	if len(r.workers) > 0 {
		stats.Sinks = make(map[string]SinkStats, len(r.workers))
		for _, worker := range r.workers {
			stats.Sinks[worker.name] = worker.stats()
		}
	}
	return stats
}

// SinkNames lists the attached sinks in sorted order.
func (r *Router) SinkNames() []string {
	names := make([]string, 0, len(r.workers))
	for _, worker := range r.workers {
		names = append(names, worker.name)
	}
	sort.Strings(names)
	return names
}

// Metrics exposes the counter store shared with telemetry adapters.
func (r *Router) Metrics() *Metrics {
	return r.metrics
}

func (r *Router) Clock() Clock {
	return r.clock
}
