package chaos

import (
	"context"
	"fmt"
	"time"

	toxiproxy "github.com/Shopify/toxiproxy/v2/client"
)

// ProxyConfig defines the proxy placed in front of the server
type ProxyConfig struct {
	APIAddr  string // toxiproxy API, e.g. "http://localhost:8474"
	Name     string
	Listen   string // address the client connects to
	Upstream string // address of the real server
}

// SetupProxy waits for the toxiproxy API and creates a fresh, enabled proxy.
// An existing proxy with the same name is replaced.
func SetupProxy(ctx context.Context, config ProxyConfig) (*toxiproxy.Proxy, error) {
	client := toxiproxy.NewClient(config.APIAddr)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for {
		proxies, err := client.Proxies()
		if err == nil {
			if existing, ok := proxies[config.Name]; ok {
				_ = existing.Delete()
			}
			break
		}
		if sleep(ctx, 500*time.Millisecond) != nil {
			return nil, fmt.Errorf("timeout waiting for toxiproxy at %s: %w", config.APIAddr, err)
		}
	}

	proxy, err := client.CreateProxy(config.Name, config.Listen, config.Upstream)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy %s: %w", config.Name, err)
	}
	if err := proxy.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable proxy %s: %w", config.Name, err)
	}
	return proxy, nil
}

// Cleanup removes all toxics and re-enables the proxy.
func Cleanup(proxy *toxiproxy.Proxy) error {
	toxics, err := proxy.Toxics()
	if err != nil {
		return err
	}
	for _, toxic := range toxics {
		_ = proxy.RemoveToxic(toxic.Name)
	}
	return proxy.Enable()
}
