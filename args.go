package respkv

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	errUnsupportedType = errors.New("unsupported argument type")
	errNotFinite       = errors.New("float is not finite")
	errBadFormat       = errors.New("bad format verb")
	errMissingOperand  = errors.New("missing operand")
	errExtraOperands   = errors.New("extra operands")
)

// Args is an ordered list of command arguments, command name first.
//
// Args converts to []string without copying, so it can be passed directly to
// Conn.Send and friends.
//
//	args, err := respkv.NewArgs("SET", "key", 123)
//	err = args.AppendArgs("EX", 60)
//	// args == ["SET", "key", "123", "EX", "60"]
type Args []string

// NewArgs builds an argument list from values converted to text.
// See AppendArgs for the accepted types.
func NewArgs(values ...any) (Args, error) {
	args := make(Args, 0, len(values))
	if err := args.AppendArgs(values...); err != nil {
		return nil, err
	}
	return args, nil
}

// Append appends strings verbatim.
func (a *Args) Append(values ...string) *Args {
	*a = append(*a, values...)
	return a
}

// AppendArgs converts each value to text and appends them in order.
//
// Accepted types are strings, byte slices, integers and finite floats,
// including named types of those kinds. Any other value fails with a
// *ConversionError and nothing is appended.
func (a *Args) AppendArgs(values ...any) error {
	converted := make([]string, len(values))
	for i, v := range values {
		s, err := FormatArg(v)
		if err != nil {
			return err
		}
		converted[i] = s
	}
	*a = append(*a, converted...)
	return nil
}

// AppendFormat appends exactly one argument produced by fmt.Sprintf.
// Formatting is locale-independent. A verb that fmt cannot apply to its
// operand, a missing operand or an unused one fails with a *ConversionError
// and nothing is appended.
func (a *Args) AppendFormat(format string, values ...any) error {
	if err := checkFormat(format, values); err != nil {
		return &ConversionError{Value: format, Err: err}
	}
	*a = append(*a, fmt.Sprintf(format, values...))
	return nil
}

// checkFormat walks the directives of format the way fmt does and reports the
// first one fmt would render as a %!verb error.
func checkFormat(format string, values []any) error {
	argNum, reordered := 0, false
	next := func() (reflect.Value, error) {
		if argNum >= len(values) {
			return reflect.Value{}, errMissingOperand
		}
		v := reflect.ValueOf(values[argNum])
		argNum++
		return v, nil
	}

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++

		for i < len(format) && strings.IndexByte("+-# 0", format[i]) >= 0 {
			i++
		}

		// Width, then precision
		for part := 0; part < 2; part++ {
			if part == 1 {
				if i >= len(format) || format[i] != '.' {
					break
				}
				i++
			}
			if n, end, ok := argIndex(format, i); ok {
				argNum, reordered, i = n, true, end
			}
			if i < len(format) && format[i] == '*' {
				i++
				v, err := next()
				if err != nil {
					return err
				}
				if !isInteger(v) {
					return fmt.Errorf("%w: width or precision is %s", errBadFormat, v.Type())
				}
				continue
			}
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				i++
			}
		}

		if n, end, ok := argIndex(format, i); ok {
			argNum, reordered, i = n, true, end
		}
		if i >= len(format) {
			return fmt.Errorf("%w: no verb at end of format", errBadFormat)
		}

		verb, size := utf8.DecodeRuneInString(format[i:])
		i += size - 1
		if verb == '%' {
			continue
		}

		v, err := next()
		if err != nil {
			return fmt.Errorf("%w for %%%c", err, verb)
		}
		if !verbAccepts(verb, v, 0) {
			if !v.IsValid() {
				return fmt.Errorf("%w: %%%c of nil", errBadFormat, verb)
			}
			return fmt.Errorf("%w: %%%c of %s", errBadFormat, verb, v.Type())
		}
	}

	if !reordered && argNum < len(values) {
		return fmt.Errorf("%w: %d unused", errExtraOperands, len(values)-argNum)
	}
	return nil
}

// argIndex parses an explicit operand index "[n]" at format[i].
func argIndex(format string, i int) (int, int, bool) {
	if i >= len(format) || format[i] != '[' {
		return 0, 0, false
	}
	end := strings.IndexByte(format[i:], ']')
	if end < 0 {
		return 0, 0, false
	}
	n, err := strconv.Atoi(format[i+1 : i+end])
	if err != nil || n < 1 {
		return 0, 0, false
	}
	return n - 1, i + end + 1, true
}

func isInteger(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

// verbAccepts reports whether fmt formats v with verb without a %!verb error.
func verbAccepts(verb rune, v reflect.Value, depth int) bool {
	if verb == 'v' || verb == 'T' {
		return true
	}
	if !v.IsValid() {
		return false
	}
	if v.CanInterface() {
		switch v.Interface().(type) {
		case fmt.Formatter:
			return true
		case error, fmt.Stringer:
			if strings.ContainsRune("sqxX", verb) {
				return true
			}
		}
	}

	switch v.Kind() {
	case reflect.Bool:
		return verb == 't'
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strings.ContainsRune("bcdoOqxXU", verb)
	case reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return strings.ContainsRune("bgGeEfFxX", verb)
	case reflect.String:
		return strings.ContainsRune("sqxX", verb)
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 && strings.ContainsRune("sqxX", verb) {
			return true
		}
		if v.Kind() == reflect.Slice && verb == 'p' {
			return true
		}
		for j := range v.Len() {
			if !verbAccepts(verb, v.Index(j), depth+1) {
				return false
			}
		}
		return true
	case reflect.Map:
		if verb == 'p' {
			return true
		}
		iter := v.MapRange()
		for iter.Next() {
			if !verbAccepts(verb, iter.Key(), depth+1) || !verbAccepts(verb, iter.Value(), depth+1) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for j := range v.NumField() {
			if !verbAccepts(verb, v.Field(j), depth+1) {
				return false
			}
		}
		return true
	case reflect.Interface:
		return verbAccepts(verb, v.Elem(), depth+1)
	case reflect.Pointer:
		// fmt prints &{...} for a top-level pointer to a composite
		if depth == 0 && !v.IsNil() {
			switch v.Elem().Kind() {
			case reflect.Array, reflect.Slice, reflect.Struct, reflect.Map:
				return verbAccepts(verb, v.Elem(), depth+1)
			}
		}
		return strings.ContainsRune("pbdoxX", verb)
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return strings.ContainsRune("pbdoxX", verb)
	}
	return false
}

// Strings returns the arguments as a plain slice.
func (a Args) Strings() []string {
	return a
}

func (a Args) String() string {
	return strings.Join(a, " ")
}

// FormatArg renders a single command argument as text.
func FormatArg(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case float64:
		return formatFloat(v, 64)
	case float32:
		return formatFloat(float64(v), 32)
	}

	// Named types and the remaining sized integers
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return formatFloat(rv.Float(), 32)
	case reflect.Float64:
		return formatFloat(rv.Float(), 64)
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes()), nil
		}
	}

	return "", &ConversionError{Value: v, Err: errUnsupportedType}
}

func formatFloat(f float64, bitSize int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &ConversionError{Value: f, Err: errNotFinite}
	}
	return strconv.FormatFloat(f, 'g', -1, bitSize), nil
}
