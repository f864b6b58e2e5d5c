package net

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"intersection/server/internal/engine"
	"intersection/server/internal/mapping"
	"intersection/server/internal/sequencer"
	"intersection/server/internal/sim"
	"intersection/server/internal/synth"
	"intersection/server/internal/world"
	"intersection/server/logging"
	"intersection/server/logging/sinks"
)

func newTestLoop(t *testing.T) (*sim.Loop, mapping.Rules) {
	t.Helper()
	rules, errs := mapping.Default()
	if len(errs) != 0 {
		t.Fatalf("default rules: %v", errs)
	}
	w := world.New(world.DefaultConfig(), world.WithRand(rand.New(rand.NewSource(9))))
	eng := engine.New(engine.DefaultConfig(), mapping.NewEvaluator(rules),
		sequencer.New(sequencer.WithRand(rand.New(rand.NewSource(9)))))
	loop, err := sim.NewLoop(sim.DefaultLoopConfig(), sim.Deps{
		World:      w,
		Engine:     eng,
		Translator: synth.NewTranslator(),
	}, sim.LoopHooks{})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	return loop, rules
}

func startServer(t *testing.T) (*httptest.Server, *sim.Loop) {
	t.Helper()
	loop, rules := newTestLoop(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	metrics := &logging.Metrics{}
	metrics.TelemetryAdd("test_counter", 3)
	handler := NewHTTPHandler(loop, HTTPHandlerConfig{
		Rules:     rules,
		Telemetry: metrics.Snapshot,
		Router:    func() logging.RouterStats { return logging.RouterStats{EventsTotal: 5} },
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv, loop
}

func TestHealth(t *testing.T) {
	loop, _ := newTestLoop(t)
	handler := NewHTTPHandler(loop, HTTPHandlerConfig{})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.Code, resp.Body.String())
	}
}

func TestDiagnosticsIncludesRatesAndTelemetry(t *testing.T) {
	loop, rules := newTestLoop(t)
	metrics := &logging.Metrics{}
	metrics.TelemetryAdd("sim_commands_applied_total", 2)
	handler := NewHTTPHandler(loop, HTTPHandlerConfig{
		Rules:     rules,
		Telemetry: metrics.Snapshot,
		Router:    func() logging.RouterStats { return logging.RouterStats{EventsTotal: 5, DroppedTotal: 1} },
	})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}

	var payload struct {
		Status    string            `json:"status"`
		Loop      sim.Diagnostics   `json:"loop"`
		Rules     int               `json:"rules"`
		Enabled   int               `json:"enabledRules"`
		Telemetry map[string]uint64 `json:"telemetry"`
		Router    logging.RouterStats
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics: %v", err)
	}
	if payload.Status != "ok" || payload.Loop.MotionRate != 60 || payload.Loop.BroadcastRate != 15 || payload.Loop.SelfRate != 30 {
		t.Fatalf("unexpected diagnostics %+v", payload)
	}
	if payload.Rules != len(rules) || payload.Enabled != rules.Enabled() {
		t.Fatalf("unexpected rule counts %d/%d", payload.Enabled, payload.Rules)
	}
	if payload.Telemetry["sim_commands_applied_total"] != 2 {
		t.Fatalf("expected telemetry snapshot, got %v", payload.Telemetry)
	}
	if payload.Router.EventsTotal != 5 || payload.Router.DroppedTotal != 1 {
		t.Fatalf("expected router stats, got %+v", payload.Router)
	}
}

func TestMappingEndpoints(t *testing.T) {
	loop, rules := newTestLoop(t)
	handler := NewHTTPHandler(loop, HTTPHandlerConfig{Rules: rules})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/mapping/rules", nil))
	var doc mapping.Document
	if err := json.Unmarshal(resp.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to decode rules: %v", err)
	}
	if len(doc) != len(rules) || doc[0].TargetParameter != rules[0].Target {
		t.Fatalf("unexpected rules document %s", resp.Body.String())
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/mapping/rules?format=table", nil))
	if !strings.Contains(resp.Body.String(), rules[0].Target) {
		t.Fatalf("expected table to mention %s, got %s", rules[0].Target, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/mapping/schema", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "targetParameter") {
		t.Fatalf("unexpected schema response %d %s", resp.Code, resp.Body.String())
	}
}

func TestDiagnosticsEventFeed(t *testing.T) {
	loop, _ := newTestLoop(t)
	recent := sinks.NewRecentSink(10)
	for _, eventType := range []logging.EventType{"lifecycle.connected", "world.collision", "lifecycle.disconnected"} {
		recent.Write(logging.Event{Type: eventType})
	}
	handler := NewHTTPHandler(loop, HTTPHandlerConfig{Events: recent.Recent})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics/events?limit=2", nil))
	var events []logging.Event
	if err := json.Unmarshal(resp.Body.Bytes(), &events); err != nil {
		t.Fatalf("failed to decode events: %v (%s)", err, resp.Body.String())
	}
	if len(events) != 2 || events[0].Type != "world.collision" || events[1].Type != "lifecycle.disconnected" {
		t.Fatalf("expected the two newest events, got %+v", events)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics/events?limit=zero", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", resp.Code)
	}

	disabled := NewHTTPHandler(loop, HTTPHandlerConfig{})
	resp = httptest.NewRecorder()
	disabled.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics/events", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without an event feed, got %d", resp.Code)
	}
}

type frameHeader struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Full bool   `json:"full"`
}

func dialRole(t *testing.T, srv *httptest.Server, role string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?role=" + role
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(frameHeader, []byte) bool) []byte {
	t.Helper()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed before expected frame: %v", err)
		}
		var header frameHeader
		if err := json.Unmarshal(payload, &header); err != nil {
			t.Fatalf("frame is not valid JSON: %v", err)
		}
		if match(header, payload) {
			return payload
		}
	}
}

func TestWebsocketEndToEnd(t *testing.T) {
	srv, loop := startServer(t)

	observer := dialRole(t, srv, "observer")
	readUntil(t, observer, func(h frameHeader, _ []byte) bool { return h.Type == sim.FrameWelcome })

	participant := dialRole(t, srv, "participant")
	welcome := readUntil(t, participant, func(h frameHeader, _ []byte) bool { return h.Type == sim.FrameWelcome })
	var hello sim.WelcomeFrame
	if err := json.Unmarshal(welcome, &hello); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	if hello.ID == "" || hello.World.Width != world.DefaultConfig().Width {
		t.Fatalf("unexpected welcome %+v", hello)
	}

	for _, message := range []string{
		`{"type":"meta","name":"Ada"}`,
		`{"type":"respawn"}`,
		`{"type":"intent","vx":100,"vy":0}`,
	} {
		if err := participant.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
			t.Fatalf("write %s: %v", message, err)
		}
	}

	self := readUntil(t, participant, func(h frameHeader, _ []byte) bool { return h.Type == sim.FrameSelf })
	var selfFrame sim.SelfFrame
	if err := json.Unmarshal(self, &selfFrame); err != nil {
		t.Fatalf("decode self: %v", err)
	}
	if selfFrame.Player.ID != hello.ID || selfFrame.Player.Name != "Ada" {
		t.Fatalf("unexpected self frame %+v", selfFrame.Player)
	}

	readUntil(t, observer, func(h frameHeader, _ []byte) bool { return h.Type == sim.FrameEngine && h.Full })
	readUntil(t, observer, func(h frameHeader, payload []byte) bool {
		if h.Type != sim.FrameState {
			return false
		}
		var state sim.StateFrame
		if err := json.Unmarshal(payload, &state); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		return len(state.Players) == 1 && state.Players[0].ID == hello.ID
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		diag := loop.Diagnostics()
		if diag.Population == 1 && diag.Observers == 1 && diag.Spawned == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("unexpected diagnostics %+v", diag)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
