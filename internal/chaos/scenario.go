// Package chaos injects network failures between a client and its server
// through a toxiproxy proxy.
package chaos

import (
	"context"
	"fmt"
	"slices"
	"time"

	toxiproxy "github.com/Shopify/toxiproxy/v2/client"
)

// Scenario represents a failure scenario run against a proxied server
type Scenario interface {
	// Name returns the unique identifier for this scenario
	Name() string

	// Description returns a human-readable description
	Description() string

	// Run applies the failure to the proxy, waits, removes it and lets the
	// client recover. It blocks for the duration of the scenario.
	Run(ctx context.Context, env Env) error
}

// Env is what a scenario runs against.
type Env struct {
	Proxy *toxiproxy.Proxy

	// Duration of the failure. Zero uses the scenario's default.
	Duration time.Duration

	// Recovery is the time allowed to recover after the failure is removed.
	Recovery time.Duration

	// Logf receives progress messages. If nil, messages are dropped.
	Logf func(format string, args ...any)
}

func (e Env) logf(format string, args ...any) {
	if e.Logf != nil {
		e.Logf(format, args...)
	}
}

func (e Env) duration(def time.Duration) time.Duration {
	if e.Duration > 0 {
		return e.Duration
	}
	return def
}

// Registry holds all available scenarios
var registry = make(map[string]Scenario)

// Register adds a scenario to the registry
func Register(s Scenario) {
	registry[s.Name()] = s
}

// Get retrieves a scenario by name
func Get(name string) (Scenario, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("scenario not found: %s", name)
	}
	return s, nil
}

// List returns all scenario names, sorted
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func init() {
	Register(&ToxicScenario{
		name:        "latency",
		description: "500ms latency (+/- 50ms jitter) - replies arrive after the client timeout",
		toxicType:   "latency",
		toxicity:    1.0,
		attributes:  toxiproxy.Attributes{"latency": 500, "jitter": 50},
		duration:    30 * time.Second,
	})
	Register(&ToxicScenario{
		name:        "brief-packet-drop",
		description: "Data stops flowing and connections close after 100ms - transient network glitch",
		toxicType:   "timeout",
		toxicity:    1.0,
		attributes:  toxiproxy.Attributes{"timeout": 100},
		duration:    5 * time.Second,
	})
	Register(&ToxicScenario{
		name:        "reset-peer",
		description: "Connections are reset by the peer - server restart or crash",
		toxicType:   "reset_peer",
		toxicity:    1.0,
		attributes:  toxiproxy.Attributes{"timeout": 0},
		duration:    5 * time.Second,
	})
	Register(&ToxicScenario{
		name:        "packet-loss",
		description: "5% of the traffic stalls - degraded network quality",
		toxicType:   "bandwidth",
		toxicity:    0.05,
		attributes:  toxiproxy.Attributes{"rate": 0},
		duration:    20 * time.Second,
	})
	Register(&PartitionScenario{})
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
