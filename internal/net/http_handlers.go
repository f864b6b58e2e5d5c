package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"strconv"

	"intersection/server/internal/mapping"
	"intersection/server/internal/net/ws"
	"intersection/server/internal/sim"
	"intersection/server/logging"
)

// Simulation is the loop surface served over HTTP.
type Simulation interface {
	ws.Loop
	Diagnostics() sim.Diagnostics
}

type HTTPHandlerConfig struct {
	ClientDir string
	Logger    *log.Logger
	Clock     logging.Clock
	Publisher logging.Publisher
	SendQueue int
	Rules     mapping.Rules
	Telemetry func() map[string]uint64
	Router    func() logging.RouterStats
	// Events returns up to n recent events, newest last.
	Events func(n int) []logging.Event
}

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

func NewHTTPHandler(loop Simulation, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string               `json:"status"`
			ServerTime int64                `json:"serverTime"`
			Loop       sim.Diagnostics      `json:"loop"`
			Rules      int                  `json:"rules"`
			Enabled    int                  `json:"enabledRules"`
			Telemetry  map[string]uint64    `json:"telemetry,omitempty"`
			Router     *logging.RouterStats `json:"router,omitempty"`
		}{
			Status:     "ok",
			ServerTime: clock.Now().UnixMilli(),
			Loop:       loop.Diagnostics(),
			Rules:      len(cfg.Rules),
			Enabled:    cfg.Rules.Enabled(),
		}
		if cfg.Telemetry != nil {
			payload.Telemetry = cfg.Telemetry()
		}
		if cfg.Router != nil {
			stats := cfg.Router()
			payload.Router = &stats
		}
		writeJSON(w, logger, payload)
	})

	mux.HandleFunc("/diagnostics/events", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if cfg.Events == nil {
			httpError(w, "event feed disabled", nethttp.StatusNotFound)
			return
		}
		limit := defaultEventLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				httpError(w, "invalid limit", nethttp.StatusBadRequest)
				return
			}
			limit = min(parsed, maxEventLimit)
		}
		events := cfg.Events(limit)
		if events == nil {
			events = []logging.Event{}
		}
		writeJSON(w, logger, events)
	})

	mux.HandleFunc("/mapping/rules", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Query().Get("format") == "table" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(cfg.Rules.Table()))
			return
		}
		writeJSON(w, logger, cfg.Rules.Document())
	})

	mux.HandleFunc("/mapping/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		data, err := mapping.SchemaJSON()
		if err != nil {
			logger.Printf("failed to encode mapping schema: %v", err)
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		w.Write(data)
	})

	handler := ws.NewHandler(loop, ws.HandlerConfig{
		Logger:    logger,
		Publisher: cfg.Publisher,
		Clock:     clock,
		SendQueue: cfg.SendQueue,
	})
	mux.HandleFunc("/ws", handler.Handle)

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, logger *log.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
