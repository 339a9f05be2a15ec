package resp

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func read(t *testing.T, input string) (*Reply, error) {
	t.Helper()
	return ReadReply(bufio.NewReader(strings.NewReader(input)))
}

func TestReadReply(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *Reply
	}{
		{"status", "+OK\r\n", Status("OK")},
		{"error", "-ERR unknown command\r\n", Error("ERR unknown command")},
		{"integer", ":42\r\n", Integer(42)},
		{"negative integer", ":-7\r\n", Integer(-7)},
		{"bulk", "$5\r\nhello\r\n", String("hello")},
		{"bulk with crlf inside", "$4\r\na\r\nb\r\n", String("a\r\nb")},
		{"null bulk", "$-1\r\n", Nil()},
		{"null array", "*-1\r\n", Nil()},
		{"empty array", "*0\r\n", Array()},
		{
			name:     "array",
			input:    "*3\r\n:1\r\n$1\r\na\r\n$-1\r\n",
			expected: Array(Integer(1), String("a"), Nil()),
		},
		{
			name:     "nested array",
			input:    "*2\r\n$2\r\n10\r\n*2\r\n$1\r\na\r\n$1\r\nb\r\n",
			expected: Array(String("10"), Strings("a", "b")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := read(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, reply)
		})
	}
}

func TestReadReply_EmptyBulk(t *testing.T) {
	reply, err := read(t, "$0\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, KindString, reply.Kind)
	assert.Empty(t, reply.Str)
	assert.False(t, reply.IsNil())
}

func TestReadReply_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantParse bool
	}{
		{"unknown type", "?foo\r\n", true},
		{"missing CR", "+OK\n", true},
		{"bad integer", ":abc\r\n", true},
		{"bad bulk length", "$x\r\n", true},
		{"negative bulk length", "$-2\r\n", true},
		{"bulk missing terminator", "$3\r\nabcXY", true},
		{"empty line", "\r\n", true},
		{"eof", "", false},
		{"truncated bulk", "$10\r\nabc", false},
		{"truncated array", "*2\r\n:1\r\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := read(t, tt.input)
			require.Error(t, err)
			assert.True(t, ShouldCloseConnection(err))

			var parseErr *ParseError
			var connErr *ConnectionError
			if tt.wantParse {
				assert.ErrorAs(t, err, &parseErr)
			} else {
				assert.ErrorAs(t, err, &connErr)
			}
		})
	}
}

func TestReadReply_EOFIsConnectionError(t *testing.T) {
	_, err := read(t, "")
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReadReply_Sequential(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("+OK\r\n:1\r\n$1\r\nx\r\n"))

	first, err := ReadReply(r)
	require.NoError(t, err)
	second, err := ReadReply(r)
	require.NoError(t, err)
	third, err := ReadReply(r)
	require.NoError(t, err)

	assert.Equal(t, Status("OK"), first)
	assert.Equal(t, Integer(1), second)
	assert.Equal(t, String("x"), third)
}

func TestReadReply_LongLine(t *testing.T) {
	status := strings.Repeat("x", 8192)
	r := bufio.NewReaderSize(strings.NewReader("+"+status+"\r\n"), 16)

	reply, err := ReadReply(r)
	require.NoError(t, err)
	assert.Equal(t, status, string(reply.Str))
}

func TestReadReply_TooDeep(t *testing.T) {
	input := strings.Repeat("*1\r\n", MaxDepth+2) + ":1\r\n"
	_, err := read(t, input)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestShouldCloseConnection(t *testing.T) {
	assert.False(t, ShouldCloseConnection(nil))
	assert.False(t, ShouldCloseConnection(&ServerError{Message: "ERR x"}))
	assert.True(t, ShouldCloseConnection(&ParseError{Message: "x"}))
	assert.True(t, ShouldCloseConnection(&ConnectionError{Op: "read", Err: io.EOF}))
	assert.True(t, ShouldCloseConnection(errors.New("unknown")))
}

func TestServerError_Prefix(t *testing.T) {
	assert.Equal(t, "WRONGTYPE", (&ServerError{Message: "WRONGTYPE Operation against a key"}).Prefix())
	assert.Equal(t, "ERR", (&ServerError{Message: "ERR"}).Prefix())
}
