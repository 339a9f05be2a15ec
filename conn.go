package respkv

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pior/respkv/internal/coarsetime"
)

var errConnClosed = errors.New("connection closed")

// Conn is one connection owned by a Session.
//
// Send and Receive must strictly alternate: each Receive returns the reply to
// the most recent unanswered Send. A Conn is not safe for concurrent use.
type Conn struct {
	addr    string
	tc      TransportConn
	session *Session // nil for a standalone Conn
	logger  *slog.Logger
	stats   *statsCollector

	last    *Reply
	pending bool
	closed  bool

	createdAt time.Time
	lastUsed  time.Time
}

// NewConn wraps an established transport connection outside of any Client,
// e.g. for tools that manage their own connection.
func NewConn(tc TransportConn, addr string) *Conn {
	return newConn(tc, addr, nil, slog.Default(), &statsCollector{})
}

func newConn(tc TransportConn, addr string, session *Session, logger *slog.Logger, stats *statsCollector) *Conn {
	now := coarsetime.Now()
	return &Conn{
		addr:      addr,
		tc:        tc,
		session:   session,
		logger:    logger,
		stats:     stats,
		createdAt: now,
		lastUsed:  now,
	}
}

// Send buffers argv for sending.
// A failure is returned as *SendError and does not schedule a health check:
// a local buffering failure is no evidence of a desynchronized stream.
func (c *Conn) Send(ctx context.Context, argv []string) error {
	if c.closed {
		return &SendError{Err: errConnClosed}
	}
	if c.pending {
		c.logger.Debug("respkv: send while a reply is pending", "addr", c.addr, "command", commandName(argv))
	}

	if err := c.tc.Send(ctx, argv); err != nil {
		c.stats.recordSendError()
		return &SendError{Err: err}
	}

	c.pending = true
	c.stats.recordCommand()
	return nil
}

// Receive blocks until the reply to the last Send is read.
//
// A failure is returned as *ReceiveError and schedules a health check before
// the owning session uses this connection again, since the stream may be
// left in the middle of a reply.
//
// The returned Reply becomes LastReply and supersedes the previous one; a
// previous Reply still held by the caller stays readable until released.
// Close releases the last reply.
func (c *Conn) Receive(ctx context.Context) (*Reply, error) {
	if c.closed {
		return nil, &ReceiveError{Err: errConnClosed}
	}

	raw, err := c.tc.Receive(ctx)
	c.pending = false
	if err != nil {
		c.stats.recordReceiveError()
		if c.session != nil {
			c.session.ScheduleCheck()
		}
		return nil, &ReceiveError{Err: err}
	}

	reply := &Reply{reply: raw}
	if releaser, ok := c.tc.(replyReleaser); ok {
		reply.releaser = releaser
	}

	c.last = reply
	c.lastUsed = coarsetime.Now()
	return reply, nil
}

// SendAndReceive sends argv and waits for its reply. Nothing is retried.
func (c *Conn) SendAndReceive(ctx context.Context, argv []string) (*Reply, error) {
	if err := c.Send(ctx, argv); err != nil {
		return nil, err
	}
	return c.Receive(ctx)
}

// LastReply returns the most recently received reply, or nil.
func (c *Conn) LastReply() *Reply {
	return c.last
}

// Reconnect re-establishes the transport connection in place.
// Failures are returned as *ConnectionError.
//
// Sessions never call Reconnect: a failed health check replaces the whole Conn.
func (c *Conn) Reconnect(ctx context.Context) error {
	if c.closed {
		return &ConnectionError{Op: "reconnect", Addr: c.addr, Err: errConnClosed}
	}

	if err := c.tc.Reconnect(ctx); err != nil {
		c.stats.recordConnectError()
		return &ConnectionError{Op: "reconnect", Addr: c.addr, Err: err}
	}

	c.stats.recordReconnect()
	c.pending = false
	c.lastUsed = coarsetime.Now()
	return nil
}

// Close releases the last reply and closes the transport connection.
// It is safe to call more than once.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.last != nil {
		c.last.Release()
	}
	c.stats.recordDisconnect()
	return c.tc.Close()
}

// Addr returns the server address.
func (c *Conn) Addr() string {
	return c.addr
}

// CreatedAt returns when the connection was established.
func (c *Conn) CreatedAt() time.Time {
	return c.createdAt
}

// IdleDuration returns how long the connection has gone without a reply.
func (c *Conn) IdleDuration() time.Duration {
	return coarsetime.Since(c.lastUsed)
}

func commandName(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return argv[0]
}
