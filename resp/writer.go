package resp

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"sync"
)

// Buffer pool for encoding commands on non-buffered writers
var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 256))
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	// Don't keep oversized buffers around after a large command
	if buf.Cap() > 64*1024 {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// WriteCommand serializes argv as a RESP command array and writes it to w.
// Format: *<argc>\r\n then $<len>\r\n<arg>\r\n for each argument.
//
// When w is a *bufio.Writer or a *bytes.Buffer the command is appended to its
// buffer and not flushed: the caller decides when the bytes go on the wire.
func WriteCommand(w io.Writer, argv []string) error {
	if len(argv) == 0 {
		return ErrEmptyCommand
	}

	switch w := w.(type) {
	case *bufio.Writer:
		return writeCommandBuffered(w, argv)
	case *bytes.Buffer:
		appendCommand(w, argv)
		return nil
	}

	buf := getBuffer()
	defer putBuffer(buf)

	appendCommand(buf, argv)
	_, err := w.Write(buf.Bytes())
	return err
}

// writeCommandBuffered writes using bufio.Writer. Errors are sticky on bw.
func writeCommandBuffered(bw *bufio.Writer, argv []string) error {
	var num [20]byte

	bw.WriteByte(TypeArray)
	bw.Write(strconv.AppendInt(num[:0], int64(len(argv)), 10))
	bw.WriteString(CRLF)

	for _, arg := range argv {
		bw.WriteByte(TypeBulk)
		bw.Write(strconv.AppendInt(num[:0], int64(len(arg)), 10))
		bw.WriteString(CRLF)
		bw.WriteString(arg)
		_, err := bw.WriteString(CRLF)
		if err != nil {
			return err
		}
	}
	return nil
}

func appendCommand(buf *bytes.Buffer, argv []string) {
	var num [20]byte

	buf.WriteByte(TypeArray)
	buf.Write(strconv.AppendInt(num[:0], int64(len(argv)), 10))
	buf.WriteString(CRLF)

	for _, arg := range argv {
		buf.WriteByte(TypeBulk)
		buf.Write(strconv.AppendInt(num[:0], int64(len(arg)), 10))
		buf.WriteString(CRLF)
		buf.WriteString(arg)
		buf.WriteString(CRLF)
	}
}

// WriteReply serializes a reply to wire format. It is the server side of
// ReadReply, used by test servers and fakes.
func WriteReply(w io.Writer, r *Reply) error {
	buf := getBuffer()
	defer putBuffer(buf)

	appendReply(buf, r)
	_, err := w.Write(buf.Bytes())
	return err
}

// AppendReply appends the wire format of r to b.
func AppendReply(b []byte, r *Reply) []byte {
	buf := bytes.NewBuffer(b)
	appendReply(buf, r)
	return buf.Bytes()
}

func appendReply(buf *bytes.Buffer, r *Reply) {
	var num [20]byte

	if r == nil {
		r = nilReply
	}

	switch r.Kind {
	case KindNil:
		buf.WriteString("$-1\r\n")
	case KindInteger:
		buf.WriteByte(TypeInteger)
		buf.Write(strconv.AppendInt(num[:0], r.Int, 10))
		buf.WriteString(CRLF)
	case KindStatus:
		buf.WriteByte(TypeStatus)
		buf.Write(r.Str)
		buf.WriteString(CRLF)
	case KindError:
		buf.WriteByte(TypeError)
		buf.Write(r.Str)
		buf.WriteString(CRLF)
	case KindString:
		buf.WriteByte(TypeBulk)
		buf.Write(strconv.AppendInt(num[:0], int64(len(r.Str)), 10))
		buf.WriteString(CRLF)
		buf.Write(r.Str)
		buf.WriteString(CRLF)
	case KindArray:
		buf.WriteByte(TypeArray)
		buf.Write(strconv.AppendInt(num[:0], int64(len(r.Elems)), 10))
		buf.WriteString(CRLF)
		for _, e := range r.Elems {
			appendReply(buf, e)
		}
	}
}

// ReadCommand reads one command array from r. It is the server side of
// WriteCommand, used by test servers and fakes.
func ReadCommand(r *bufio.Reader) ([]string, error) {
	reply, err := ReadReply(r)
	if err != nil {
		return nil, err
	}
	if reply.Kind != KindArray || len(reply.Elems) == 0 {
		return nil, &ParseError{Message: "command is not a non-empty array"}
	}

	argv := make([]string, len(reply.Elems))
	for i, e := range reply.Elems {
		if e.Kind != KindString {
			return nil, &ParseError{Message: "command argument is not a bulk string"}
		}
		argv[i] = string(e.Str)
	}
	return argv, nil
}
