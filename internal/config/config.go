// Package config defines the resolved configuration record the
// Controller consumes. Layered loading (defaults + profile file +
// key/value overrides) happens in cmd/overlaynode via viper; this
// package only validates and exposes the result, matching the spec's
// boundary that configuration is "consumed, not parsed, by the core".
package config

import (
	"fmt"
	"time"

	"github.com/crocme10/area-net/internal/netid"
)

// Config is the fully resolved set of inputs the Controller needs to
// run, per spec §5's "Configuration inputs" list.
type Config struct {
	Label  string
	Listen netid.NetAddress

	Targets []netid.NetAddress

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	MonitorIdleInterval   time.Duration
	MonitorStatusInterval time.Duration
	DiscoveryInterval     time.Duration

	MaxOutgoing int
	MaxNodes    int

	StatusOutputPath string

	DiagramEnabled    bool
	DiagramOutputPath string

	// ShutdownDrain bounds how long the Controller waits for
	// PeerClosed acknowledgements after issuing Shutdown to every
	// peer before abandoning stragglers (spec §4.3).
	ShutdownDrain time.Duration

	// MergeCacheTTL bounds how long the discovery loop will skip
	// re-merging an unchanged ContactsResponse from the same remote
	// (internal/cache).
	MergeCacheTTL time.Duration
}

// Validate checks the struct for the minimal set of constraints the
// Controller relies on at startup; violations are fatal (spec §7,
// ConfigError).
func (c Config) Validate() error {
	if c.Listen.IsZero() {
		return &ValidationError{Detail: "listen.address/listen.port must be set"}
	}
	if c.HeartbeatInterval <= 0 {
		return &ValidationError{Detail: "heartbeat.interval must be positive"}
	}
	if c.HeartbeatTimeout <= c.HeartbeatInterval {
		return &ValidationError{Detail: "heartbeat.timeout must exceed heartbeat.interval"}
	}
	if c.MonitorIdleInterval <= 0 {
		return &ValidationError{Detail: "monitor.idle.interval must be positive"}
	}
	if c.MonitorStatusInterval <= 0 {
		return &ValidationError{Detail: "monitor.status.interval must be positive"}
	}
	if c.DiscoveryInterval <= 0 {
		return &ValidationError{Detail: "discovery.interval must be positive"}
	}
	if c.MaxOutgoing <= 0 {
		return &ValidationError{Detail: "max_outgoing must be positive"}
	}
	if c.MaxNodes <= 0 {
		return &ValidationError{Detail: "max_nodes must be positive"}
	}
	if c.StatusOutputPath == "" {
		return &ValidationError{Detail: "status output path must be set"}
	}
	if c.DiagramEnabled && c.DiagramOutputPath == "" {
		return &ValidationError{Detail: "diagram.output_path must be set when diagram.enabled is true"}
	}
	return nil
}

// ValidationError reports a single invalid config field.
type ValidationError struct{ Detail string }

func (e *ValidationError) Error() string { return fmt.Sprintf("config: %s", e.Detail) }
