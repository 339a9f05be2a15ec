package respkv

import (
	"context"
	"testing"
	"time"

	"github.com/pior/respkv/resp"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGoBreaker(t *testing.T) {
	cb := NewGoBreaker(gobreaker.Settings{
		Name:    "test",
		Timeout: time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 1
		},
	})
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	conn := &fakeConn{handler: echoHandler}
	got, err := cb.Execute(func() (TransportConn, error) { return conn, nil })
	require.NoError(t, err)
	assert.Same(t, conn, got)

	for range 2 {
		_, err = cb.Execute(func() (TransportConn, error) { return nil, errBoom })
		require.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestNewGobreakerConfig(t *testing.T) {
	cb := NewGobreakerConfig(1, time.Minute, 20*time.Millisecond)("127.0.0.1:6379")
	fail := func() (TransportConn, error) { return nil, errBoom }
	succeed := func() (TransportConn, error) { return &fakeConn{handler: echoHandler}, nil }

	for range 2 {
		_, err := cb.Execute(succeed)
		require.NoError(t, err)
	}
	_, _ = cb.Execute(fail)
	_, _ = cb.Execute(fail)
	assert.Equal(t, gobreaker.StateClosed, cb.State(), "2 failures out of 4 attempts")

	_, _ = cb.Execute(fail)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Execute(succeed)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

	_, err = cb.Execute(succeed)
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_GuardsReplacement(t *testing.T) {
	mismatch := func([]string) (*resp.Reply, error) { return resp.Integer(0), nil }
	transport := &fakeTransport{handlers: []replyFunc{mismatch}}
	client := newTestClient(t, transport, func(c *Config) {
		c.NewCircuitBreaker = func(addr string) CircuitBreaker {
			return NewGoBreaker(gobreaker.Settings{
				Name:        addr,
				Timeout:     time.Minute,
				ReadyToTrip: func(gobreaker.Counts) bool { return true },
			})
		}
	})
	s := newTestSession(t, client)

	_, err := s.Conn(context.Background(), false)
	require.NoError(t, err)

	transport.connectErr = errBoom
	_, err = s.Conn(context.Background(), true)
	require.ErrorIs(t, err, errBoom)

	// The failed replacement opened the breaker: the next attempt fails fast.
	transport.connectErr = nil
	_, err = s.Conn(context.Background(), false)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 1, transport.connects())
}
