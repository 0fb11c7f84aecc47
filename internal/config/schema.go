// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading for the bridge.
package config

import "time"

// Config is the root bridge configuration. Every field is optional; see
// applyDefaults for the values used when a field (or the whole file) is
// absent.
type Config struct {
	// Editor is the short identifier written into the env script file name
	// and the IDE info exposed over the wire (e.g. "neovim", "vscode").
	Editor string `json:"editor"`

	// Debounce is the Context Aggregator's notification coalescing window.
	// Accepts a Go duration string; the recommended band is 150-300ms, but
	// out-of-band values are honored verbatim (an operator may have a
	// reason to widen or narrow it).
	Debounce string `json:"debounce"`

	// KeepaliveInterval is how often the Session Hub pings each session.
	KeepaliveInterval string `json:"keepalive_interval"`

	// KeepaliveMaxMissed is how many consecutive failed pings abandon a session.
	KeepaliveMaxMissed int `json:"keepalive_max_missed"`

	// ReapMaxAge is loaded and defaulted but not read by the stale reaper,
	// which always unlinks descriptor/env files older than a fixed 24h,
	// regardless of PID liveness.
	ReapMaxAge string `json:"reap_max_age"`

	// ReapInterval is the cadence of the background rescan beyond the
	// mandatory on-start pass.
	ReapInterval string `json:"reap_interval"`

	// Debug enables the debug WebSocket (GET /debug/events); it does not
	// change log output.
	Debug bool `json:"debug"`
}

// Defaults used when a field (or the whole config file) is absent.
const (
	DefaultEditor              = "unknown"
	DefaultDebounce            = 200 * time.Millisecond
	DefaultKeepaliveInterval   = 60 * time.Second
	DefaultKeepaliveMaxMissed  = 3
	DefaultReapMaxAge          = 24 * time.Hour
	DefaultReapInterval        = 10 * time.Minute
)

func applyDefaults(cfg *Config) {
	if cfg.Editor == "" {
		cfg.Editor = DefaultEditor
	}
	if cfg.Debounce == "" {
		cfg.Debounce = DefaultDebounce.String()
	}
	if cfg.KeepaliveInterval == "" {
		cfg.KeepaliveInterval = DefaultKeepaliveInterval.String()
	}
	if cfg.KeepaliveMaxMissed <= 0 {
		cfg.KeepaliveMaxMissed = DefaultKeepaliveMaxMissed
	}
	if cfg.ReapMaxAge == "" {
		cfg.ReapMaxAge = DefaultReapMaxAge.String()
	}
	if cfg.ReapInterval == "" {
		cfg.ReapInterval = DefaultReapInterval.String()
	}
}

// ParseDuration parses s as a Go duration, falling back to def on error
// or when s is empty — a duration string with a safe fallback, used
// throughout internal/bridge wherever a config value feeds a timer.
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
