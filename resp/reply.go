package resp

import (
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Reply.
type Kind uint8

const (
	KindNil Kind = iota
	KindInteger
	KindString
	KindStatus
	KindError
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	case KindArray:
		return "array"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// IsText reports whether the kind carries a byte payload in Str.
func (k Kind) IsText() bool {
	return k == KindString || k == KindStatus || k == KindError
}

// Reply is a decoded RESP reply.
// Only the fields matching Kind are meaningful:
//
//   - KindInteger: Int
//   - KindString, KindStatus, KindError: Str
//   - KindArray: Elems
//
// A Reply is read-only once returned by ReadReply.
type Reply struct {
	Kind  Kind
	Int   int64
	Str   []byte
	Elems []*Reply
}

var nilReply = &Reply{Kind: KindNil}

// Nil returns the shared nil reply.
func Nil() *Reply {
	return nilReply
}

func Integer(n int64) *Reply {
	return &Reply{Kind: KindInteger, Int: n}
}

func String(s string) *Reply {
	return &Reply{Kind: KindString, Str: []byte(s)}
}

func Bytes(b []byte) *Reply {
	return &Reply{Kind: KindString, Str: b}
}

func Status(s string) *Reply {
	return &Reply{Kind: KindStatus, Str: []byte(s)}
}

func Error(s string) *Reply {
	return &Reply{Kind: KindError, Str: []byte(s)}
}

// Array builds an array reply. A nil element is stored as the nil reply.
func Array(elems ...*Reply) *Reply {
	for i, e := range elems {
		if e == nil {
			elems[i] = nilReply
		}
	}
	if elems == nil {
		elems = []*Reply{}
	}
	return &Reply{Kind: KindArray, Elems: elems}
}

// Strings builds an array of bulk strings.
func Strings(values ...string) *Reply {
	elems := make([]*Reply, len(values))
	for i, v := range values {
		elems[i] = String(v)
	}
	return &Reply{Kind: KindArray, Elems: elems}
}

// IsNil reports whether r is nil or a nil reply.
func (r *Reply) IsNil() bool {
	return r == nil || r.Kind == KindNil
}

// Len returns the number of elements of an array reply, 0 otherwise.
func (r *Reply) Len() int {
	if r == nil || r.Kind != KindArray {
		return 0
	}
	return len(r.Elems)
}

// String renders the reply the way redis-cli does, for debugging and the CLI.
func (r *Reply) String() string {
	var sb strings.Builder
	r.format(&sb, "")
	return sb.String()
}

func (r *Reply) format(sb *strings.Builder, indent string) {
	if r == nil {
		sb.WriteString("(nil)")
		return
	}

	switch r.Kind {
	case KindNil:
		sb.WriteString("(nil)")
	case KindInteger:
		sb.WriteString("(integer) ")
		sb.WriteString(strconv.FormatInt(r.Int, 10))
	case KindString:
		sb.WriteString(strconv.Quote(string(r.Str)))
	case KindStatus:
		sb.Write(r.Str)
	case KindError:
		sb.WriteString("(error) ")
		sb.Write(r.Str)
	case KindArray:
		if len(r.Elems) == 0 {
			sb.WriteString("(empty array)")
			return
		}
		for i, e := range r.Elems {
			if i > 0 {
				sb.WriteString("\n")
				sb.WriteString(indent)
			}
			prefix := strconv.Itoa(i+1) + ") "
			sb.WriteString(prefix)
			e.format(sb, indent+strings.Repeat(" ", len(prefix)))
		}
	default:
		sb.WriteString(r.Kind.String())
	}
}
