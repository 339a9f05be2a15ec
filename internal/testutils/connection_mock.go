package testutils

import (
	"bufio"
	"bytes"
	"net"
	"time"

	"github.com/pior/respkv/resp"
)

// ConnectionMock is a mock implementation of net.Conn for testing.
// Reads are served from pre-encoded replies; writes are recorded.
type ConnectionMock struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	closed   bool
}

// NewConnectionMock creates a new mock connection serving the given replies in order.
func NewConnectionMock(replies ...*resp.Reply) *ConnectionMock {
	var data []byte
	for _, r := range replies {
		data = resp.AppendReply(data, r)
	}
	return NewRawConnectionMock(string(data))
}

// NewRawConnectionMock creates a mock connection serving raw bytes, e.g. a
// truncated or malformed reply.
func NewRawConnectionMock(data string) *ConnectionMock {
	return &ConnectionMock{
		readBuf:  bytes.NewBufferString(data),
		writeBuf: &bytes.Buffer{},
	}
}

func (m *ConnectionMock) Read(b []byte) (n int, err error) {
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (n int, err error) {
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.closed = true
	return nil
}

func (m *ConnectionMock) IsClosed() bool {
	return m.closed
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6379}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }

// GetWrittenRequest returns the raw bytes written to the mock connection.
func (m *ConnectionMock) GetWrittenRequest() string {
	return m.writeBuf.String()
}

// GetWrittenCommands decodes the command arrays written to the mock connection.
func (m *ConnectionMock) GetWrittenCommands() ([][]string, error) {
	r := bufio.NewReader(bytes.NewReader(m.writeBuf.Bytes()))

	var commands [][]string
	for {
		if _, err := r.Peek(1); err != nil {
			return commands, nil
		}
		argv, err := resp.ReadCommand(r)
		if err != nil {
			return nil, err
		}
		commands = append(commands, argv)
	}
}
