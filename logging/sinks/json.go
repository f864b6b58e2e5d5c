package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"intersection/server/logging"
)

type jsonRecord struct {
	Type     logging.EventType   `json:"type"`
	Tick     uint64              `json:"tick"`
	Time     string              `json:"time"`
	Severity string              `json:"severity"`
	Category string              `json:"category,omitempty"`
	Actor    logging.EntityRef   `json:"actor"`
	Targets  []logging.EntityRef `json:"targets,omitempty"`
	Payload  any                 `json:"payload,omitempty"`
	Extra    map[string]any      `json:"extra,omitempty"`
}

// JSON appends newline-delimited event records. With a positive flush
// interval output is buffered and flushed on a ticker, otherwise after every
// record. Close flushes but leaves the underlying writer open.
type JSON struct {
	mu      sync.Mutex
	buf     *bufio.Writer
	encoder *json.Encoder
	eager   bool
	done    chan struct{}
	once    sync.Once
}

func NewJSON(w io.Writer, flushInterval time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	sink := &JSON{
		buf:     buf,
		encoder: json.NewEncoder(buf),
		eager:   flushInterval <= 0,
		done:    make(chan struct{}),
	}
	if !sink.eager {
		go sink.flushEvery(flushInterval)
	}
	return sink
}

func (s *JSON) Write(event logging.Event) error {
	record := jsonRecord{
		Type:     event.Type,
		Tick:     event.Tick,
		Time:     event.Time.UTC().Format(time.RFC3339Nano),
		Severity: event.Severity.String(),
		Category: event.Category,
		Actor:    event.Actor,
		Targets:  event.Targets,
		Payload:  event.Payload,
		Extra:    event.Extra,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.encoder.Encode(record); err != nil {
		return err
	}
	if s.eager {
		return s.buf.Flush()
	}
	return nil
}

func (s *JSON) Close(context.Context) error {
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Flush()
}

func (s *JSON) flushEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.buf.Flush()
			s.mu.Unlock()
		}
	}
}
