package respkv

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/pior/respkv/resp"
)

var errReconnectUnsupported = errors.New("reconnect not supported on a wrapped connection")

// Transport opens connections to a resolved target.
type Transport interface {
	Connect(ctx context.Context, target Target) (TransportConn, error)
}

// TransportConn is one connection of a Transport.
//
// Send buffers a command and fails only on local buffering failure; Receive
// writes pending commands out and blocks until a reply is read. A TransportConn is used by one goroutine at a time.
// Transports that recycle replies also implement Release(*resp.Reply).
type TransportConn interface {
	Send(ctx context.Context, argv []string) error
	Receive(ctx context.Context) (*resp.Reply, error)
	Reconnect(ctx context.Context) error
	Close() error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, target Target) (TransportConn, error)

func (f TransportFunc) Connect(ctx context.Context, target Target) (TransportConn, error) {
	return f(ctx, target)
}

// NetTransport speaks RESP over TCP.
type NetTransport struct {
	// Dialer is used to open connections. If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// Timeout bounds each operation whose context has no deadline.
	// Zero means no limit.
	Timeout time.Duration
}

func (t *NetTransport) Connect(ctx context.Context, target Target) (TransportConn, error) {
	c := &netConn{
		addr:    target.Addr(),
		dialer:  t.Dialer,
		timeout: t.Timeout,
	}
	if c.dialer == nil {
		c.dialer = &net.Dialer{}
	}
	if err := c.dial(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewNetConn wraps an established net.Conn, e.g. one end of net.Pipe.
// Reconnect is not supported on such a connection.
func NewNetConn(conn net.Conn) TransportConn {
	c := &netConn{addr: conn.RemoteAddr().String()}
	c.attach(conn)
	return c
}

type netConn struct {
	addr    string
	dialer  *net.Dialer
	timeout time.Duration

	conn   net.Conn
	reader *bufio.Reader
	out    bytes.Buffer // commands not yet written
}

func (c *netConn) dial(ctx context.Context) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *netConn) attach(conn net.Conn) {
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.out.Reset()
}

// Send appends the command to the output buffer. It never touches the network,
// so a broken socket surfaces in Receive.
func (c *netConn) Send(ctx context.Context, argv []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return resp.WriteCommand(&c.out, argv)
}

func (c *netConn) Receive(ctx context.Context) (*resp.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.setDeadline(ctx)

	if _, err := c.out.WriteTo(c.conn); err != nil {
		// The server may have a partial command; only a new connection is usable.
		c.out.Reset()
		return nil, &resp.ConnectionError{Op: "write", Err: err}
	}
	return resp.ReadReply(c.reader)
}

func (c *netConn) Reconnect(ctx context.Context) error {
	if c.dialer == nil {
		return errReconnectUnsupported
	}
	_ = c.conn.Close()
	return c.dial(ctx)
}

func (c *netConn) Close() error {
	return c.conn.Close()
}

// setDeadline applies the context deadline, or the default timeout if the
// context has none.
func (c *netConn) setDeadline(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	} else if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	} else {
		_ = c.conn.SetDeadline(time.Time{})
	}
}

// Target is a resolved server address.
type Target struct {
	Host string
	Port int
}

func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return t.Addr()
}
