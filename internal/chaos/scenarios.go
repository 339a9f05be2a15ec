package chaos

import (
	"context"
	"fmt"
	"time"

	toxiproxy "github.com/Shopify/toxiproxy/v2/client"
)

// ToxicScenario adds one downstream toxic to the proxy for a while.
type ToxicScenario struct {
	name        string
	description string
	toxicType   string
	toxicity    float32
	attributes  toxiproxy.Attributes
	duration    time.Duration
}

func (s *ToxicScenario) Name() string {
	return s.name
}

func (s *ToxicScenario) Description() string {
	return s.description
}

func (s *ToxicScenario) Run(ctx context.Context, env Env) error {
	if env.Proxy == nil {
		return fmt.Errorf("no proxy available")
	}

	env.logf("[Scenario] Injecting %s on %s", s.name, env.Proxy.Name)
	toxic, err := env.Proxy.AddToxic(s.name, s.toxicType, "downstream", s.toxicity, s.attributes)
	if err != nil {
		return fmt.Errorf("failed to add toxic to %s: %w", env.Proxy.Name, err)
	}

	duration := env.duration(s.duration)
	env.logf("[Scenario] Running with %s for %s", s.name, duration)
	waitErr := sleep(ctx, duration)

	// Always remove the toxic, even when canceled
	env.logf("[Scenario] Removing %s from %s", s.name, env.Proxy.Name)
	if err := env.Proxy.RemoveToxic(toxic.Name); err != nil {
		return fmt.Errorf("failed to remove toxic from %s: %w", env.Proxy.Name, err)
	}
	if waitErr != nil {
		return waitErr
	}

	env.logf("[Scenario] Allowing %s recovery time", env.Recovery)
	return sleep(ctx, env.Recovery)
}

// PartitionScenario disables the proxy: the server is unreachable and new
// connections are refused.
type PartitionScenario struct{}

func (s *PartitionScenario) Name() string {
	return "partition"
}

func (s *PartitionScenario) Description() string {
	return "Server unreachable for 10s - complete network partition"
}

func (s *PartitionScenario) Run(ctx context.Context, env Env) error {
	if env.Proxy == nil {
		return fmt.Errorf("no proxy available")
	}

	env.logf("[Scenario] Disabling proxy %s (total network partition)", env.Proxy.Name)
	if err := env.Proxy.Disable(); err != nil {
		return fmt.Errorf("failed to disable proxy: %w", err)
	}

	duration := env.duration(10 * time.Second)
	env.logf("[Scenario] Server unavailable for %s", duration)
	waitErr := sleep(ctx, duration)

	env.logf("[Scenario] Re-enabling proxy %s", env.Proxy.Name)
	if err := env.Proxy.Enable(); err != nil {
		return fmt.Errorf("failed to enable proxy: %w", err)
	}
	if waitErr != nil {
		return waitErr
	}

	env.logf("[Scenario] Allowing %s recovery time", env.Recovery)
	return sleep(ctx, env.Recovery)
}
