package respkv

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"
)

// DefaultService is the service name resolved when Config.Service is empty.
const DefaultService = "redis_server"

// Config holds configuration for a Client.
type Config struct {
	// Service is the name looked up through Resolver.
	// Defaults to DefaultService.
	Service string

	// Resolver maps Service to a host and port.
	// If nil, Addr is used.
	Resolver Resolver

	// Addr is the "host:port" used when Resolver is nil.
	Addr string

	// Transport opens connections.
	// If nil, a NetTransport using Dialer and Timeout is used.
	Transport Transport

	// Dialer is the net.Dialer used by the default transport.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// Timeout bounds each blocking operation whose context has no deadline.
	// Zero means no limit: a hung server blocks the calling goroutine.
	Timeout time.Duration

	// CheckAfterIdle forces a health check when a connection has not been used
	// for longer than this duration.
	// Zero disables idle checks.
	CheckAfterIdle time.Duration

	// NewCircuitBreaker creates a circuit breaker guarding connection attempts
	// to a server. Called once per server address.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) CircuitBreaker

	// Logger receives connection lifecycle events.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Resolver looks up the connection target of a service.
type Resolver interface {
	Resolve(ctx context.Context, service string) (Target, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, service string) (Target, error)

func (f ResolverFunc) Resolve(ctx context.Context, service string) (Target, error) {
	return f(ctx, service)
}

// StaticResolver resolves services from a fixed table.
type StaticResolver map[string]Target

func (s StaticResolver) Resolve(_ context.Context, service string) (Target, error) {
	target, ok := s[service]
	if !ok {
		return Target{}, fmt.Errorf("unknown service %q", service)
	}
	return target, nil
}

// ParseTarget parses a "host:port" address.
func ParseTarget(addr string) (Target, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Target{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Target{}, fmt.Errorf("invalid port in %q", addr)
	}
	return Target{Host: host, Port: port}, nil
}

// addrResolver resolves every service to one fixed address.
type addrResolver struct {
	target Target
}

func (r addrResolver) Resolve(context.Context, string) (Target, error) {
	return r.target, nil
}
