// Package config loads, normalizes, and validates server configuration.
//
// Settings come from repository defaults, an optional TOML file, and a small
// set of environment overrides (INTERSECTION_ADDR, INTERSECTION_MAPPING,
// INTERSECTION_LOG_LEVEL, BROADCAST_RATE_HZ). The Config type converts into
// the constructor options of the world, loop, engine and logging packages so
// downstream code never parses raw values itself.
package config
