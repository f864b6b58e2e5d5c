// Package telemetry holds the narrow logging and counter interfaces the loop
// and transport depend on, so neither imports the router directly.
package telemetry

import (
	"log"
	"strings"

	"intersection/server/logging"
)

// Logger is the Printf surface used for operator-facing diagnostics.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f != nil {
		f(format, args...)
	}
}

// WrapLogger adapts a standard library logger. A nil logger discards output.
func WrapLogger(logger *log.Logger) Logger {
	if logger == nil {
		return DiscardLogger()
	}
	return LoggerFunc(logger.Printf)
}

// DiscardLogger drops every line.
func DiscardLogger() Logger {
	return LoggerFunc(func(string, ...any) {})
}

// Tagged prefixes every line with "[tag] " unless the format already starts
// with a bracketed tag of its own.
func Tagged(logger Logger, tag string) Logger {
	if logger == nil {
		return DiscardLogger()
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return logger
	}
	prefix := "[" + tag + "] "
	return LoggerFunc(func(format string, args ...any) {
		if strings.HasPrefix(format, "[") {
			logger.Printf(format, args...)
			return
		}
		logger.Printf(prefix+format, args...)
	})
}

// Metrics receives loop and buffer counters. Add accumulates, Store overwrites.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// WrapMetrics exposes the router's counter store as Metrics. A nil store
// discards updates.
func WrapMetrics(metrics *logging.Metrics) Metrics {
	if metrics == nil {
		return Discard()
	}
	return routerMetrics{metrics: metrics}
}

type routerMetrics struct {
	metrics *logging.Metrics
}

func (m routerMetrics) Add(key string, delta uint64) { m.metrics.TelemetryAdd(key, delta) }

func (m routerMetrics) Store(key string, value uint64) { m.metrics.TelemetryStore(key, value) }

// Discard returns Metrics that ignore every update.
func Discard() Metrics {
	return discardMetrics{}
}

type discardMetrics struct{}

func (discardMetrics) Add(string, uint64)   {}
func (discardMetrics) Store(string, uint64) {}
