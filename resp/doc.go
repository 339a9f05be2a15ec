// Package resp provides a low-level wire protocol implementation for the
// RESP2 request/response protocol spoken by Redis-compatible key-value stores.
//
// This package is the transport layer used by the respkv client. It encodes
// command arrays and decodes replies into a tagged union, without imposing
// any connection management or decoding policy.
//
// # Core Types
//
// Reply is a pure data container for a decoded reply:
//
//   - KindNil: null bulk string or null array
//   - KindInteger: ":<n>"
//   - KindString, KindStatus, KindError: "$", "+" and "-" replies
//   - KindArray: "*" replies, with nested elements
//
// # Serialization and Parsing
//
// WriteCommand serializes a command array to wire format:
//
//	err := resp.WriteCommand(w, []string{"SET", "key", "value"})
//
// ReadReply parses one reply from wire format:
//
//	reply, err := resp.ReadReply(bufio.NewReader(conn))
//	if err != nil {
//	    if resp.ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
//
// # Error Handling
//
// Error replies from the server ("-ERR ...") are not Go errors: they are
// returned as a Reply of KindError. Go errors returned by ReadReply indicate
// I/O or framing failures and leave the stream in an undefined state.
package resp
