package respkv

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/pior/respkv/resp"
	"github.com/stretchr/testify/require"
)

type replyFunc func(argv []string) (*resp.Reply, error)

// echoHandler answers ECHO with its argument and anything else with +OK.
func echoHandler(argv []string) (*resp.Reply, error) {
	if argv[0] == "ECHO" {
		return resp.String(argv[1]), nil
	}
	return resp.Status("OK"), nil
}

// fakeConn is a scripted TransportConn: each Receive answers the oldest
// pending Send through handler.
type fakeConn struct {
	id      int
	handler replyFunc
	sendErr error

	pending    [][]string
	sent       [][]string
	closed     bool
	released   int
	reconnects int
	reconnErr  error
}

func (c *fakeConn) Send(_ context.Context, argv []string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	argv = slices.Clone(argv)
	c.sent = append(c.sent, argv)
	c.pending = append(c.pending, argv)
	return nil
}

func (c *fakeConn) Receive(_ context.Context) (*resp.Reply, error) {
	if len(c.pending) == 0 {
		return nil, io.EOF
	}
	argv := c.pending[0]
	c.pending = c.pending[1:]
	return c.handler(argv)
}

func (c *fakeConn) Reconnect(context.Context) error {
	c.reconnects++
	if c.reconnErr != nil {
		return c.reconnErr
	}
	c.pending = nil
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) Release(*resp.Reply) {
	c.released++
}

// commands returns the names of the commands sent, in order.
func (c *fakeConn) commands() []string {
	names := make([]string, len(c.sent))
	for i, argv := range c.sent {
		names[i] = argv[0]
	}
	return names
}

// fakeTransport hands out fakeConns. handlers[i] scripts the i-th connection;
// connections beyond the script use echoHandler.
type fakeTransport struct {
	mu         sync.Mutex
	handlers   []replyFunc
	connectErr error
	conns      []*fakeConn
	targets    []Target
}

func (t *fakeTransport) Connect(_ context.Context, target Target) (TransportConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.targets = append(t.targets, target)
	if t.connectErr != nil {
		return nil, t.connectErr
	}

	c := &fakeConn{id: len(t.conns), handler: echoHandler}
	if c.id < len(t.handlers) && t.handlers[c.id] != nil {
		c.handler = t.handlers[c.id]
	}
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *fakeTransport) conn(i int) *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[i]
}

func (t *fakeTransport) connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, transport Transport, opts ...func(*Config)) *Client {
	t.Helper()

	config := Config{
		Addr:      "127.0.0.1:6379",
		Transport: transport,
		Logger:    discardLogger(),
	}
	for _, opt := range opts {
		opt(&config)
	}

	client, err := NewClient(config)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestSession(t *testing.T, client *Client) *Session {
	t.Helper()

	s, err := client.Session()
	require.NoError(t, err)
	return s
}
