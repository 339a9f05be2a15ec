package respkv

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Config(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)

	_, err = NewClient(Config{Addr: "localhost"})
	require.Error(t, err)

	client, err := NewClient(Config{Addr: "localhost:6379"})
	require.NoError(t, err)
	assert.Equal(t, DefaultService, client.service)
	assert.IsType(t, &NetTransport{}, client.transport)
	require.NoError(t, client.Close())
}

func TestClient_ResolvesService(t *testing.T) {
	transport := &fakeTransport{}
	resolver := StaticResolver{
		"sessions": {Host: "10.0.0.7", Port: 6390},
	}
	client := newTestClient(t, transport, func(c *Config) {
		c.Service = "sessions"
		c.Resolver = resolver
	})
	s := newTestSession(t, client)

	conn, err := s.Conn(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7:6390", conn.Addr())
	assert.Equal(t, []Target{{Host: "10.0.0.7", Port: 6390}}, transport.targets)
}

func TestClient_UnknownService(t *testing.T) {
	client := newTestClient(t, &fakeTransport{}, func(c *Config) {
		c.Resolver = StaticResolver{}
	})
	s := newTestSession(t, client)

	_, err := s.Conn(context.Background(), false)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "resolve", connErr.Op)
	assert.Contains(t, err.Error(), DefaultService)
}

func TestClient_SessionIDsAreUnique(t *testing.T) {
	client := newTestClient(t, &fakeTransport{})

	seen := map[uint64]bool{}
	for range 10 {
		s := newTestSession(t, client)
		assert.False(t, seen[s.ID()])
		seen[s.ID()] = true
	}
	assert.Equal(t, int64(10), client.Stats().Sessions)
}

func TestClient_Run(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport)

	var mu sync.Mutex
	sessions := map[uint64]*Conn{}

	err := client.Run(context.Background(), 4, func(ctx context.Context, s *Session) error {
		fromCtx, ok := SessionFromContext(ctx)
		if !ok || fromCtx != s {
			t.Error("session missing from context")
		}

		conn, err := s.Conn(ctx, false)
		if err != nil {
			return err
		}
		for range 10 {
			if _, err := s.Do(ctx, "PING"); err != nil {
				return err
			}
		}

		mu.Lock()
		sessions[s.ID()] = conn
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	require.Len(t, sessions, 4)
	conns := map[*Conn]bool{}
	for _, conn := range sessions {
		conns[conn] = true
	}
	assert.Len(t, conns, 4, "each worker owns its connection")
	assert.Equal(t, 4, transport.connects())

	for i := range 4 {
		c := transport.conn(i)
		assert.True(t, c.closed)
		assert.Len(t, c.sent, 10)
	}

	stats := client.Stats()
	assert.Zero(t, stats.Sessions)
	assert.Zero(t, stats.Connections)
	assert.Equal(t, uint64(40), stats.Commands)
}

func TestClient_RunReturnsFirstError(t *testing.T) {
	client := newTestClient(t, &fakeTransport{})

	err := client.Run(context.Background(), 3, func(ctx context.Context, s *Session) error {
		if s.ID() == 2 {
			return errBoom
		}
		<-ctx.Done()
		return nil
	})
	require.ErrorIs(t, err, errBoom)
}

func TestClient_Close(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport)

	s1 := newTestSession(t, client)
	s2 := newTestSession(t, client)
	_, err := s1.Conn(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	assert.True(t, transport.conn(0).closed)
	_, err = s1.Conn(context.Background(), false)
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s2.Conn(context.Background(), false)
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = client.Session()
	assert.ErrorIs(t, err, ErrClientClosed)

	err = client.Run(context.Background(), 1, func(context.Context, *Session) error { return nil })
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_CircuitBreakerStates(t *testing.T) {
	client := newTestClient(t, &fakeTransport{}, func(c *Config) {
		c.Service = "cache"
		c.Resolver = StaticResolver{"cache": {Host: "10.0.0.1", Port: 6379}}
		c.NewCircuitBreaker = NewGobreakerConfig(1, time.Minute, time.Minute)
	})
	assert.Empty(t, client.CircuitBreakerStates())

	_, err := newTestSession(t, client).Conn(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, map[string]gobreaker.State{
		"10.0.0.1:6379": gobreaker.StateClosed,
	}, client.CircuitBreakerStates())
}

func TestClient_StatsCountConnectErrors(t *testing.T) {
	transport := &fakeTransport{connectErr: errBoom}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	_, err := s.Conn(context.Background(), false)
	require.Error(t, err)

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.ConnectErrors)
	assert.Zero(t, stats.Connects)
	assert.Zero(t, stats.Connections)
}
