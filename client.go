package respkv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
)

// Client hands out one Session per worker. Each session owns its connection,
// so the command path takes no lock.
//
// A Client is safe for concurrent use; its sessions are not.
type Client struct {
	service        string
	resolver       Resolver
	transport      Transport
	checkAfterIdle time.Duration
	logger         *slog.Logger

	newCircuitBreaker func(serverAddr string) CircuitBreaker

	nextID atomic.Uint64

	mu       sync.Mutex
	sessions map[uint64]*Session
	breakers map[string]CircuitBreaker
	closed   bool

	stats *statsCollector
}

// NewClient creates a client. No connection is opened until a session needs one.
func NewClient(config Config) (*Client, error) {
	resolver := config.Resolver
	if resolver == nil {
		if config.Addr == "" {
			return nil, errors.New("respkv: config requires a Resolver or an Addr")
		}
		target, err := ParseTarget(config.Addr)
		if err != nil {
			return nil, fmt.Errorf("respkv: invalid Addr: %w", err)
		}
		resolver = addrResolver{target: target}
	}

	service := config.Service
	if service == "" {
		service = DefaultService
	}

	transport := config.Transport
	if transport == nil {
		transport = &NetTransport{Dialer: config.Dialer, Timeout: config.Timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		service:           service,
		resolver:          resolver,
		transport:         transport,
		checkAfterIdle:    config.CheckAfterIdle,
		logger:            logger,
		newCircuitBreaker: config.NewCircuitBreaker,
		sessions:          make(map[uint64]*Session),
		breakers:          make(map[string]CircuitBreaker),
		stats:             &statsCollector{},
	}, nil
}

// Session returns a new session. The caller owns it and closes it when the
// worker ends.
func (c *Client) Session() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}

	s := &Session{
		client: c,
		id:     c.nextID.Add(1),
	}
	c.sessions[s.id] = s
	c.stats.recordSessionOpen()

	c.logger.Debug("respkv: session opened", "session", s.id)
	return s, nil
}

func (c *Client) removeSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[s.id]; !ok {
		return
	}
	delete(c.sessions, s.id)
	c.stats.recordSessionClose()

	c.logger.Debug("respkv: session closed", "session", s.id)
}

// Run starts workers goroutines, each with its own session carried by the
// context passed to fn. Sessions are closed when their worker returns.
// The first error cancels the context of the other workers and is returned.
func (c *Client) Run(ctx context.Context, workers int, fn func(ctx context.Context, s *Session) error) error {
	g, ctx := errgroup.WithContext(ctx)

	for range workers {
		g.Go(func() error {
			s, err := c.Session()
			if err != nil {
				return err
			}
			defer s.Close()

			return fn(ContextWithSession(ctx, s), s)
		})
	}

	return g.Wait()
}

// connect resolves the service and opens a connection for s.
func (c *Client) connect(ctx context.Context, s *Session) (*Conn, error) {
	target, err := c.resolver.Resolve(ctx, c.service)
	if err != nil {
		c.stats.recordConnectError()
		return nil, &ConnectionError{Op: "resolve", Err: err}
	}
	addr := target.Addr()

	dial := func() (TransportConn, error) {
		return c.transport.Connect(ctx, target)
	}

	var tc TransportConn
	if cb := c.circuitBreaker(addr); cb != nil {
		tc, err = cb.Execute(dial)
	} else {
		tc, err = dial()
	}
	if err != nil {
		c.stats.recordConnectError()
		c.logger.Error("respkv: connect failed", "session", s.id, "addr", addr, "error", err)
		return nil, &ConnectionError{Op: "connect", Addr: addr, Err: err}
	}

	c.stats.recordConnect()
	return newConn(tc, addr, s, c.logger, c.stats), nil
}

// circuitBreaker returns the breaker of addr, creating it on first use.
func (c *Client) circuitBreaker(addr string) CircuitBreaker {
	if c.newCircuitBreaker == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.breakers[addr]
	if !ok {
		cb = c.newCircuitBreaker(addr)
		c.breakers[addr] = cb
	}
	return cb
}

// CircuitBreakerStates returns the state of each server's circuit breaker.
func (c *Client) CircuitBreakerStates() map[string]gobreaker.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	states := make(map[string]gobreaker.State, len(c.breakers))
	for addr, cb := range c.breakers {
		states[addr] = cb.State()
	}
	return states
}

// Close marks the client closed and closes the connections of all sessions.
// Sessions must not be in use by their workers when Close is called.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}
