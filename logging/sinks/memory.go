package sinks

import (
	"context"
	"sync"

	"intersection/server/logging"
)

// MemorySink keeps events in memory. With a limit it retains only the most
// recent ones, which backs the diagnostics event feed; without one it records
// everything for tests.
type MemorySink struct {
	mu     sync.RWMutex
	events []logging.Event
	limit  int
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// NewRecentSink retains at most limit events, discarding the oldest first.
func NewRecentSink(limit int) *MemorySink {
	if limit < 1 {
		limit = 1
	}
	return &MemorySink{events: make([]logging.Event, 0, limit), limit: limit}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && len(s.events) == s.limit {
		copy(s.events, s.events[1:])
		s.events = s.events[:len(s.events)-1]
	}
	s.events = append(s.events, event.Clone())
	return nil
}

func (s *MemorySink) Events() []logging.Event {
	return s.Recent(0)
}

// Recent returns up to n of the newest events, oldest first. n <= 0 returns all.
func (s *MemorySink) Recent(n int) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && n < len(s.events) {
		start = len(s.events) - n
	}
	return append([]logging.Event(nil), s.events[start:]...)
}

// OfType filters the recorded events by type.
func (s *MemorySink) OfType(eventType logging.EventType) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []logging.Event
	for _, event := range s.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	s.events = s.events[:0]
	s.mu.Unlock()
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}
