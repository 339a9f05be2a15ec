package resp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCommand(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		expected string
	}{
		{"single", []string{"PING"}, "*1\r\n$4\r\nPING\r\n"},
		{"set", []string{"SET", "key", "123"}, "*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$3\r\n123\r\n"},
		{"empty argument", []string{"ECHO", ""}, "*2\r\n$4\r\nECHO\r\n$0\r\n\r\n"},
		{"binary argument", []string{"SET", "k", "a\r\nb"}, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$4\r\na\r\nb\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCommand(&buf, tt.argv))
			assert.Equal(t, tt.expected, buf.String())

			var out bytes.Buffer
			bw := bufio.NewWriter(&out)
			require.NoError(t, WriteCommand(bw, tt.argv))
			assert.Zero(t, out.Len(), "buffered write must not flush")
			require.NoError(t, bw.Flush())
			assert.Equal(t, tt.expected, out.String())
		})
	}
}

func TestWriteCommand_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteCommand(&buf, nil), ErrEmptyCommand)
	assert.Zero(t, buf.Len())
}

func TestReadCommand(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCommand(&buf, []string{"ECHO", "hello"}))

	argv, err := ReadCommand(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, []string{"ECHO", "hello"}, argv)
}

func TestWriteReply_ReadBack(t *testing.T) {
	replies := []*Reply{
		Nil(),
		Integer(-12),
		String("bulk"),
		Status("OK"),
		Error("ERR boom"),
		Array(String("k"), Integer(1), Nil(), Strings("a", "b")),
	}

	var buf bytes.Buffer
	for _, r := range replies {
		require.NoError(t, WriteReply(&buf, r))
	}

	reader := bufio.NewReader(&buf)
	for _, want := range replies {
		got, err := ReadReply(reader)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestReply_String(t *testing.T) {
	assert.Equal(t, "(nil)", Nil().String())
	assert.Equal(t, "(integer) 3", Integer(3).String())
	assert.Equal(t, "OK", Status("OK").String())
	assert.Equal(t, "(error) ERR x", Error("ERR x").String())
	assert.Equal(t, "(empty array)", Array().String())
	assert.Equal(t, "1) \"a\"\n2) (integer) 2", Array(String("a"), Integer(2)).String())
}
