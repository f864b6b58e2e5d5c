package logging

import (
	"log"
	"sync/atomic"
	"time"
)

const maxRetryShift = 5

// SinkStats counts per-sink delivery outcomes.
type SinkStats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

// sinkWorker serialises writes to one sink. After a failed write it backs off
// exponentially, capped at 32s, before the next attempt.
type sinkWorker struct {
	name     string
	sink     Sink
	events   chan Event
	fallback *log.Logger

	failures  int
	nextRetry time.Time

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func newSinkWorker(name string, sink Sink, backlog int, fallback *log.Logger) *sinkWorker {
	return &sinkWorker{
		name:     name,
		sink:     sink,
		events:   make(chan Event, backlog),
		fallback: fallback,
	}
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- event.Clone():
	default:
		if w.dropped.Add(1)&63 == 1 {
			w.fallback.Printf("sink %s backlog full, dropping event type=%s", w.name, event.Type)
		}
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if w.failures > 0 {
			if wait := time.Until(w.nextRetry); wait > 0 {
				time.Sleep(wait)
			}
		}
		if err := w.sink.Write(event); err != nil {
			w.failed.Add(1)
			w.failures++
			delay := time.Duration(1<<min(w.failures, maxRetryShift)) * time.Second
			w.nextRetry = time.Now().Add(delay)
			w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
			continue
		}
		w.delivered.Add(1)
		w.failures = 0
	}
}

func (w *sinkWorker) stats() SinkStats {
	return SinkStats{
		Delivered: w.delivered.Load(),
		Failed:    w.failed.Load(),
		Dropped:   w.dropped.Load(),
	}
}
