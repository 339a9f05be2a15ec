package respkv

import (
	"errors"
	"math"
	"reflect"
	"strconv"

	"github.com/pior/respkv/resp"
)

var (
	errOutOfRange = errors.New("value out of range")
	errNotBool    = errors.New("boolean must be 0 or 1")
)

// Decode fills dst from the reply r. The shape decoded is chosen by the type
// dst points to:
//
//   - scalars (string, []byte, integers, floats, bool) accept integer and
//     text replies (bulk, status and error); arrays are rejected with
//     *TypeMismatchError and unparsable text with *CastError
//   - slices accept array replies; a nil element decodes to the zero value
//   - maps accept array replies read as key, value, key, value...; the first
//     occurrence of a repeated key wins and a trailing odd element is ignored
//   - pointers decode into a newly allocated value, or nil for a nil element
//
// Decode returns false and leaves dst untouched when r is a nil reply.
func Decode(r *resp.Reply, dst any) (bool, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false, &TypeMismatchError{Kind: kindOf(r), Target: reflect.TypeOf(dst), Reason: "target must be a non-nil pointer"}
	}
	return decodeValue(r, rv.Elem())
}

// DecodeScan decodes a cursor-paginated reply: an array whose first element
// is the next cursor and whose second element is the page.
// It returns false without decoding anything if r is not an array of at
// least two elements. The cursor is only updated when both elements decode.
func DecodeScan(r *resp.Reply, cursor *uint64, dst any) (bool, error) {
	if r == nil || r.Kind != resp.KindArray || len(r.Elems) < 2 {
		return false, nil
	}
	if cursor == nil {
		return false, &TypeMismatchError{Kind: r.Kind, Target: reflect.TypeOf(cursor), Reason: "target must be a non-nil pointer"}
	}

	var next uint64
	ok, err := Decode(r.Elems[0], &next)
	if err != nil {
		return false, err
	}
	if _, err := Decode(r.Elems[1], dst); err != nil {
		return false, err
	}

	// A nil cursor leaves the caller's untouched
	if ok {
		*cursor = next
	}
	return true, nil
}

func kindOf(r *resp.Reply) resp.Kind {
	if r == nil {
		return resp.KindNil
	}
	return r.Kind
}

func decodeValue(r *resp.Reply, v reflect.Value) (bool, error) {
	if r.IsNil() {
		return false, nil
	}

	switch v.Kind() {
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return true, decodeScalar(r, v)
		}
		return true, decodeSlice(r, v)
	case reflect.Map:
		return true, decodeMap(r, v)
	case reflect.Pointer:
		elem := reflect.New(v.Type().Elem())
		if _, err := decodeValue(r, elem.Elem()); err != nil {
			return false, err
		}
		v.Set(elem)
		return true, nil
	default:
		return true, decodeScalar(r, v)
	}
}

// decodeElem decodes a nested element: a nil reply sets the zero value.
func decodeElem(r *resp.Reply, v reflect.Value) error {
	if r.IsNil() {
		v.SetZero()
		return nil
	}
	_, err := decodeValue(r, v)
	return err
}

func decodeSlice(r *resp.Reply, v reflect.Value) error {
	if r.Kind != resp.KindArray {
		return &TypeMismatchError{Kind: r.Kind, Target: v.Type(), Reason: "sequence requires an array reply"}
	}

	out := reflect.MakeSlice(v.Type(), len(r.Elems), len(r.Elems))
	for i, elem := range r.Elems {
		if err := decodeElem(elem, out.Index(i)); err != nil {
			return err
		}
	}
	v.Set(out)
	return nil
}

func decodeMap(r *resp.Reply, v reflect.Value) error {
	if r.Kind != resp.KindArray {
		return &TypeMismatchError{Kind: r.Kind, Target: v.Type(), Reason: "mapping requires an array reply"}
	}

	typ := v.Type()
	out := reflect.MakeMapWithSize(typ, len(r.Elems)/2)
	key := reflect.New(typ.Key()).Elem()
	val := reflect.New(typ.Elem()).Elem()

	for i := 0; i+1 < len(r.Elems); i += 2 {
		key.SetZero()
		val.SetZero()
		if err := decodeElem(r.Elems[i], key); err != nil {
			return err
		}
		if err := decodeElem(r.Elems[i+1], val); err != nil {
			return err
		}

		// First occurrence wins
		if out.MapIndex(key).IsValid() {
			continue
		}
		out.SetMapIndex(key, val)
	}

	v.Set(out)
	return nil
}

func decodeScalar(r *resp.Reply, v reflect.Value) error {
	switch r.Kind {
	case resp.KindInteger:
		return setFromInt(r.Int, v)
	case resp.KindString, resp.KindStatus, resp.KindError:
		return setFromText(r.Kind, r.Str, v)
	case resp.KindArray:
		return &TypeMismatchError{Kind: r.Kind, Target: v.Type(), Reason: "cannot decode array as scalar"}
	default:
		return &TypeMismatchError{Kind: r.Kind, Target: v.Type(), Reason: "unknown reply kind"}
	}
}

func setFromInt(n int64, v reflect.Value) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(strconv.FormatInt(n, 10))
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.Uint8 {
			return unsupported(resp.KindInteger, v)
		}
		v.SetBytes(strconv.AppendInt(nil, n, 10))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.OverflowInt(n) {
			return castError(strconv.FormatInt(n, 10), v, errOutOfRange)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n < 0 || v.OverflowUint(uint64(n)) {
			return castError(strconv.FormatInt(n, 10), v, errOutOfRange)
		}
		v.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		v.SetFloat(float64(n))
	case reflect.Bool:
		switch n {
		case 0:
			v.SetBool(false)
		case 1:
			v.SetBool(true)
		default:
			return castError(strconv.FormatInt(n, 10), v, errNotBool)
		}
	default:
		return unsupported(resp.KindInteger, v)
	}
	return nil
}

func setFromText(kind resp.Kind, b []byte, v reflect.Value) error {
	s := string(b)

	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.Uint8 {
			return unsupported(kind, v)
		}
		v.SetBytes(append([]byte{}, b...))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return castError(s, v, err)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return castError(s, v, err)
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return castError(s, v, err)
		}
		if math.IsNaN(f) {
			return castError(s, v, strconv.ErrSyntax)
		}
		v.SetFloat(f)
	case reflect.Bool:
		switch s {
		case "0":
			v.SetBool(false)
		case "1":
			v.SetBool(true)
		default:
			return castError(s, v, errNotBool)
		}
	default:
		return unsupported(kind, v)
	}
	return nil
}

func castError(value string, v reflect.Value, err error) error {
	return &CastError{Value: value, Target: v.Type(), Err: err}
}

func unsupported(kind resp.Kind, v reflect.Value) error {
	return &TypeMismatchError{Kind: kind, Target: v.Type(), Reason: "unsupported target type"}
}
