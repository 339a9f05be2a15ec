package resp

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
)

var crlfBytes = []byte(CRLF)

// ReadReply reads and parses a single reply from r.
//
// Error replies from the server are returned as a Reply of KindError, not as
// a Go error.
//
// Go errors returned indicate I/O or parsing failures:
//   - ConnectionError: the underlying reader failed (including io.EOF)
//   - ParseError: malformed reply, the stream is desynchronized
func ReadReply(r *bufio.Reader) (*Reply, error) {
	return readReply(r, 0)
}

func readReply(r *bufio.Reader, depth int) (*Reply, error) {
	if depth > MaxDepth {
		return nil, &ParseError{Message: "array nesting too deep"}
	}

	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, &ParseError{Message: "empty reply line"}
	}

	typ, payload := line[0], line[1:]

	switch typ {
	case TypeStatus:
		return &Reply{Kind: KindStatus, Str: bytes.Clone(payload)}, nil

	case TypeError:
		return &Reply{Kind: KindError, Str: bytes.Clone(payload)}, nil

	case TypeInteger:
		n, err := strconv.ParseInt(string(payload), 10, 64)
		if err != nil {
			return nil, &ParseError{Message: "invalid integer reply", Err: err}
		}
		return &Reply{Kind: KindInteger, Int: n}, nil

	case TypeBulk:
		size, err := parseLength(payload, MaxBulkLength)
		if err != nil {
			return nil, err
		}
		if size < 0 {
			return nilReply, nil
		}
		return readBulk(r, size)

	case TypeArray:
		count, err := parseLength(payload, MaxArrayLength)
		if err != nil {
			return nil, err
		}
		if count < 0 {
			return nilReply, nil
		}

		elems := make([]*Reply, 0, min(count, 1024))
		for range count {
			elem, err := readReply(r, depth+1)
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
		}
		return &Reply{Kind: KindArray, Elems: elems}, nil

	default:
		return nil, &ParseError{Message: "unknown reply type " + strconv.QuoteRune(rune(typ))}
	}
}

// readLine returns the next line without its CRLF.
// The returned slice is only valid until the next read on r.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// Line exceeds buffer, fall back to ReadBytes (allocates)
		head := bytes.Clone(line)
		var rest []byte
		rest, err = r.ReadBytes('\n')
		line = append(head, rest...)
	}
	if err != nil {
		return nil, &ConnectionError{Op: "read", Err: err}
	}

	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, &ParseError{Message: "line not terminated by CRLF"}
	}
	return line[:len(line)-2], nil
}

// parseLength parses a bulk or array length header. -1 means nil.
func parseLength(b []byte, limit int) (int, error) {
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, &ParseError{Message: "invalid length", Err: err}
	}
	if n < -1 {
		return 0, &ParseError{Message: "negative length " + strconv.Itoa(n)}
	}
	if n > limit {
		return 0, &ParseError{Message: "length " + strconv.Itoa(n) + " exceeds limit"}
	}
	return n, nil
}

func readBulk(r *bufio.Reader, size int) (*Reply, error) {
	buf := make([]byte, size+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, &ConnectionError{Op: "read", Err: err}
	}
	if !bytes.Equal(buf[size:], crlfBytes) {
		return nil, &ParseError{Message: "bulk string not terminated by CRLF"}
	}
	return &Reply{Kind: KindString, Str: buf[:size:size]}, nil
}
