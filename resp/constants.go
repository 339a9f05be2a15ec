package resp

// Type bytes of RESP2.
const (
	TypeStatus  byte = '+'
	TypeError   byte = '-'
	TypeInteger byte = ':'
	TypeBulk    byte = '$'
	TypeArray   byte = '*'
)

const CRLF = "\r\n"

// Limits applied by ReadReply before allocating.
const (
	// MaxBulkLength is the largest bulk string accepted (the server-side proto-max-bulk-len default).
	MaxBulkLength = 512 * 1024 * 1024

	// MaxArrayLength bounds the element count of a single array header.
	MaxArrayLength = 1<<31 - 1

	// MaxDepth bounds array nesting.
	MaxDepth = 64
)
