package respkv

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pior/respkv/internal/coarsetime"
	"github.com/pior/respkv/resp"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_LazyConnect(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	assert.Equal(t, 0, transport.connects())

	conn, err := s.Conn(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, transport.connects())
	assert.Equal(t, "127.0.0.1:6379", conn.Addr())

	again, err := s.Conn(context.Background(), false)
	require.NoError(t, err)
	assert.Same(t, conn, again)
	assert.Equal(t, 1, transport.connects())
	assert.Empty(t, transport.conn(0).sent)
}

func TestSession_HealthyCheckKeepsConnection(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	conn, err := s.Conn(context.Background(), false)
	require.NoError(t, err)

	checked, err := s.Conn(context.Background(), true)
	require.NoError(t, err)
	assert.Same(t, conn, checked)
	assert.Equal(t, 1, transport.connects())
	assert.Equal(t, []string{"ECHO"}, transport.conn(0).commands())
	assert.Equal(t, 1, transport.conn(0).released, "the echo reply goes back to the transport")
	assert.False(t, s.CheckScheduled())

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.HealthChecks)
	assert.Zero(t, stats.HealthCheckFailures)
	assert.Zero(t, stats.Replacements)
}

func TestSession_CloseReleasesReplies(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)
	ctx := context.Background()

	for range 3 {
		_, err := s.Conn(ctx, true)
		require.NoError(t, err)
	}
	fc := transport.conn(0)
	assert.Equal(t, 3, fc.released)

	reply, err := s.Do(ctx, "PING")
	require.NoError(t, err)
	assert.Equal(t, 3, fc.released)

	require.NoError(t, s.Close())
	assert.True(t, fc.closed)
	assert.Equal(t, 4, fc.released)
	assert.Nil(t, reply.Read())

	reply.Release()
	assert.Equal(t, 4, fc.released)
}

func TestSession_ReplacementReleasesCheckReply(t *testing.T) {
	mismatch := func([]string) (*resp.Reply, error) { return resp.String("1"), nil }
	transport := &fakeTransport{handlers: []replyFunc{mismatch}}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	_, err := s.Conn(context.Background(), true)
	require.NoError(t, err)

	old := transport.conn(0)
	assert.True(t, old.closed)
	assert.Equal(t, 1, old.released)
}

func TestSession_FailedCheckReplacesConnection(t *testing.T) {
	tests := []struct {
		name    string
		handler replyFunc
	}{
		{"different value", func([]string) (*resp.Reply, error) { return resp.String("1"), nil }},
		{"nil reply", func([]string) (*resp.Reply, error) { return resp.Nil(), nil }},
		{"error reply", func([]string) (*resp.Reply, error) { return resp.Error("ERR unknown command"), nil }},
		{"array reply", func([]string) (*resp.Reply, error) { return resp.Strings("a"), nil }},
		{"receive error", func([]string) (*resp.Reply, error) { return nil, io.EOF }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{handlers: []replyFunc{tt.handler}}
			client := newTestClient(t, transport)
			s := newTestSession(t, client)

			first, err := s.Conn(context.Background(), false)
			require.NoError(t, err)

			conn, err := s.Conn(context.Background(), true)
			require.NoError(t, err, "the check failure itself is not returned")
			assert.NotSame(t, first, conn)
			assert.Equal(t, 2, transport.connects())
			assert.True(t, transport.conn(0).closed)
			assert.False(t, transport.conn(1).closed)
			assert.Empty(t, transport.conn(1).sent, "a fresh connection is not checked again")
			assert.False(t, s.CheckScheduled())

			stats := client.Stats()
			assert.Equal(t, uint64(1), stats.HealthCheckFailures)
			assert.Equal(t, uint64(1), stats.Replacements)
			assert.Equal(t, uint64(2), stats.Connects)
			assert.Equal(t, int64(1), stats.Connections)
		})
	}
}

func TestSession_FailedSendReplacesConnection(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	_, err := s.Conn(context.Background(), false)
	require.NoError(t, err)
	transport.conn(0).sendErr = errBoom

	_, err = s.Conn(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, transport.connects())
	assert.True(t, transport.conn(0).closed)
}

func TestSession_ReceiveErrorTriggersCheckOnNextUse(t *testing.T) {
	handler := func(argv []string) (*resp.Reply, error) {
		if argv[0] == "GET" {
			return nil, io.ErrUnexpectedEOF
		}
		return echoHandler(argv)
	}
	transport := &fakeTransport{handlers: []replyFunc{handler}}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	_, err := s.Do(context.Background(), "GET", "k")
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, NeedsRecheck(err))
	assert.True(t, s.CheckScheduled())

	reply, err := s.Do(context.Background(), "PING")
	require.NoError(t, err)
	assert.NoError(t, reply.Err())
	assert.False(t, s.CheckScheduled())

	// The connection passed the check and was kept.
	assert.Equal(t, 1, transport.connects())
	assert.Equal(t, []string{"GET", "ECHO", "PING"}, transport.conn(0).commands())
}

func TestSession_ReceiveErrorThenFailedCheck(t *testing.T) {
	broken := func([]string) (*resp.Reply, error) { return nil, io.EOF }
	transport := &fakeTransport{handlers: []replyFunc{broken}}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	_, err := s.Do(context.Background(), "GET", "k")
	require.Error(t, err)

	_, err = s.Do(context.Background(), "PING")
	require.NoError(t, err)

	assert.Equal(t, 2, transport.connects())
	assert.Equal(t, []string{"GET", "ECHO"}, transport.conn(0).commands())
	assert.Equal(t, []string{"PING"}, transport.conn(1).commands())
}

func TestSession_ScheduleCheck(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	_, err := s.Conn(context.Background(), false)
	require.NoError(t, err)

	s.ScheduleCheck()
	assert.True(t, s.CheckScheduled())

	_, err = s.Conn(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, s.CheckScheduled())
	assert.Equal(t, []string{"ECHO"}, transport.conn(0).commands())
}

func TestSession_FailedReplacementConnect(t *testing.T) {
	mismatch := func([]string) (*resp.Reply, error) { return resp.String("0"), nil }
	transport := &fakeTransport{handlers: []replyFunc{mismatch}}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	_, err := s.Conn(context.Background(), false)
	require.NoError(t, err)

	transport.connectErr = errBoom
	_, err = s.Conn(context.Background(), true)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "connect", connErr.Op)
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, transport.conn(0).closed)
	assert.False(t, s.CheckScheduled())

	// The next use connects afresh.
	transport.connectErr = nil
	conn, err := s.Conn(context.Background(), false)
	require.NoError(t, err)
	assert.Same(t, transport.conn(1), conn.tc)
	assert.Empty(t, transport.conn(1).sent)
}

func TestSession_IdleCheck(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport, func(c *Config) {
		c.CheckAfterIdle = 2 * coarsetime.Resolution
	})
	s := newTestSession(t, client)

	_, err := s.Conn(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, transport.conn(0).sent)

	time.Sleep(5 * coarsetime.Resolution)

	_, err = s.Conn(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"ECHO"}, transport.conn(0).commands())
	assert.Equal(t, 1, transport.connects())

	// The check counts as use.
	_, err = s.Conn(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, transport.conn(0).sent, 1)
}

func TestSession_EchoTokenChangesPerCheck(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	for range 3 {
		_, err := s.Conn(context.Background(), true)
		require.NoError(t, err)
	}

	sent := transport.conn(0).sent
	require.Len(t, sent, 3)
	tokens := map[string]bool{}
	for _, argv := range sent {
		require.Len(t, argv, 2)
		tokens[argv[1]] = true
	}
	assert.Len(t, tokens, 3)
}

func TestEchoToken(t *testing.T) {
	assert.Equal(t, echoToken(1, 0), echoToken(1, 0))
	assert.NotEqual(t, echoToken(1, 0), echoToken(1, 1))
	assert.NotEqual(t, echoToken(1, 0), echoToken(2, 0))
	assert.NotEqual(t, echoToken(1, 2), echoToken(2, 1))
}

func TestSession_Do(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	reply, err := s.Do(context.Background(), "SET", "key", 123, "EX", 60)
	require.NoError(t, err)
	assert.Equal(t, resp.KindStatus, reply.Kind())
	assert.Equal(t, [][]string{{"SET", "key", "123", "EX", "60"}}, transport.conn(0).sent)
	assert.Equal(t, uint64(1), client.Stats().Commands)
}

func TestSession_DoConversionError(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	_, err := s.Do(context.Background(), "SET", "key", struct{}{})

	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, 0, transport.connects())
}

func TestSession_Close(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport)
	s := newTestSession(t, client)

	_, err := s.Conn(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), client.Stats().Sessions)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, transport.conn(0).closed)
	assert.Zero(t, client.Stats().Sessions)
	assert.Zero(t, client.Stats().Connections)

	_, err = s.Conn(context.Background(), false)
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = s.Do(context.Background(), "PING")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_ResolveError(t *testing.T) {
	transport := &fakeTransport{}
	client := newTestClient(t, transport, func(c *Config) {
		c.Resolver = ResolverFunc(func(context.Context, string) (Target, error) {
			return Target{}, errBoom
		})
	})
	s := newTestSession(t, client)

	_, err := s.Conn(context.Background(), false)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "resolve", connErr.Op)
	assert.Empty(t, connErr.Addr)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, transport.connects())
	assert.Equal(t, uint64(1), client.Stats().ConnectErrors)
}

func TestSession_CircuitBreakerOpens(t *testing.T) {
	transport := &fakeTransport{connectErr: errBoom}
	client := newTestClient(t, transport, func(c *Config) {
		c.NewCircuitBreaker = NewGobreakerConfig(1, time.Minute, time.Minute)
	})
	s := newTestSession(t, client)

	for range 3 {
		_, err := s.Conn(context.Background(), false)
		require.ErrorIs(t, err, errBoom)
	}

	_, err := s.Conn(context.Background(), false)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, transport.targets, 3, "an open breaker does not dial")

	states := client.CircuitBreakerStates()
	assert.Equal(t, gobreaker.StateOpen, states["127.0.0.1:6379"])
}

func TestSessionContext(t *testing.T) {
	client := newTestClient(t, &fakeTransport{})
	s := newTestSession(t, client)

	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithSession(context.Background(), s)
	got, ok := SessionFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, s, got)
}
