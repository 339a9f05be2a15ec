package respkv

import "github.com/pior/respkv/resp"

// noCopy may be embedded into structs which must not be copied
// after the first use. See sync.noCopy; checked by go vet.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Reply owns one received reply until Release.
//
// A Reply must not be copied: pass *Reply. Decoding errors never affect the
// connection the reply came from. A Reply is not safe for concurrent use;
// decode the values out before handing them to another goroutine.
type Reply struct {
	noCopy noCopy

	reply    *resp.Reply
	releaser replyReleaser
}

// replyReleaser is implemented by transports that recycle replies.
type replyReleaser interface {
	Release(*resp.Reply)
}

// NewReply wraps a raw reply, e.g. to decode replies obtained elsewhere.
func NewReply(r *resp.Reply) *Reply {
	if r == nil {
		r = resp.Nil()
	}
	return &Reply{reply: r}
}

// Release gives the reply back to the transport. It is safe to call more than once.
func (r *Reply) Release() {
	if r.reply == nil {
		return
	}
	if r.releaser != nil {
		r.releaser.Release(r.reply)
	}
	r.reply = nil
	r.releaser = nil
}

// Read returns the raw reply for manual inspection, or nil after Release.
func (r *Reply) Read() *resp.Reply {
	return r.reply
}

// Kind returns the kind of the reply. A released reply reports KindNil.
func (r *Reply) Kind() resp.Kind {
	if r.reply == nil {
		return resp.KindNil
	}
	return r.reply.Kind
}

// IsNil reports whether the reply is a nil reply.
func (r *Reply) IsNil() bool {
	return r.reply.IsNil()
}

// Err returns a *resp.ServerError when the server replied with an error.
func (r *Reply) Err() error {
	if r.reply == nil {
		return ErrReleased
	}
	if r.reply.Kind == resp.KindError {
		return &resp.ServerError{Message: string(r.reply.Str)}
	}
	return nil
}

// DecodeInto decodes the reply into dst. See Decode for the rules.
// It returns false and leaves dst untouched when the reply is nil.
func (r *Reply) DecodeInto(dst any) (bool, error) {
	if r.reply == nil {
		return false, ErrReleased
	}
	return Decode(r.reply, dst)
}

// DecodeScanInto decodes a SCAN-family reply into the next cursor and the page.
// It returns false without decoding if the reply is not an array of at least
// two elements.
func (r *Reply) DecodeScanInto(cursor *uint64, dst any) (bool, error) {
	if r.reply == nil {
		return false, ErrReleased
	}
	return DecodeScan(r.reply, cursor, dst)
}

// As decodes the reply into a new T. It returns ErrNil for a nil reply.
//
//	n, err := respkv.As[int64](reply)
func As[T any](r *Reply) (T, error) {
	var value T
	ok, err := r.DecodeInto(&value)
	if err != nil {
		return value, err
	}
	if !ok {
		return value, ErrNil
	}
	return value, nil
}
