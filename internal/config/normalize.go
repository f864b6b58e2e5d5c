package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	envAddr          = "INTERSECTION_ADDR"
	envMapping       = "INTERSECTION_MAPPING"
	envLogLevel      = "INTERSECTION_LOG_LEVEL"
	envBroadcastRate = "BROADCAST_RATE_HZ"
)

func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Server.ClientDir = strings.TrimSpace(c.Server.ClientDir)
	c.Server.LockPath = strings.TrimSpace(c.Server.LockPath)
	c.Mapping.RulesPath = strings.TrimSpace(c.Mapping.RulesPath)
	c.Engine.GateParam = strings.TrimSpace(c.Engine.GateParam)
	c.Engine.AccentPrefix = strings.TrimSpace(c.Engine.AccentPrefix)
	for i, target := range c.Engine.GridTargets {
		c.Engine.GridTargets[i] = strings.TrimSpace(target)
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnv() error {
	if value, ok := os.LookupEnv(envAddr); ok && strings.TrimSpace(value) != "" {
		c.Server.Addr = value
	}
	if value, ok := os.LookupEnv(envMapping); ok && strings.TrimSpace(value) != "" {
		c.Mapping.RulesPath = value
	}
	if value, ok := os.LookupEnv(envLogLevel); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	if raw, ok := os.LookupEnv(envBroadcastRate); ok && strings.TrimSpace(raw) != "" {
		rate, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: %w", envBroadcastRate, err)
		}
		c.Loop.BroadcastRateHz = rate
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	seen := make(map[string]struct{}, len(c.Logging.Sinks))
	sinks := make([]string, 0, len(c.Logging.Sinks))
	for _, sink := range c.Logging.Sinks {
		sink = strings.ToLower(strings.TrimSpace(sink))
		if sink == "" {
			continue
		}
		if _, dup := seen[sink]; dup {
			continue
		}
		seen[sink] = struct{}{}
		sinks = append(sinks, sink)
	}
	c.Logging.Sinks = sinks
	c.Logging.JSONPath = strings.TrimSpace(c.Logging.JSONPath)
	c.Logging.SQLitePath = strings.TrimSpace(c.Logging.SQLitePath)
}
