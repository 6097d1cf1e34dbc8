package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrNotSerializable is returned when a value tree contains a function.
var ErrNotSerializable = errors.New("functions are not serializable")

// Serialize renders v as JSON text. Byte slices become lowercase hex,
// time.Time values become TimestampLayout text and Undefined object members
// are omitted. Structs are encoded by encoding/json, so their byte fields
// should use Bytes and their time fields Time. HTML characters are not
// escaped.
func Serialize(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		var unsupported *json.UnsupportedTypeError
		if errors.As(err, &unsupported) && unsupported.Type.Kind() == reflect.Func {
			return nil, fmt.Errorf("%w: %s", ErrNotSerializable, unsupported.Type)
		}
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case undefined:
		return nil, nil
	case Bytes:
		return EncodeHex(t), nil
	case []byte:
		return EncodeHex(t), nil
	case time.Time:
		return FormatTimestamp(t), nil
	case Time:
		return FormatTimestamp(t.Time), nil
	case Object:
		return normalizeMap(t.fields)
	case map[string]any:
		return normalizeMap(t)
	case List:
		return normalizeSlice(t.items)
	case []any:
		return normalizeSlice(t)
	}
	if reflect.TypeOf(v).Kind() == reflect.Func {
		return nil, ErrNotSerializable
	}
	return v, nil
}

func normalizeSlice(s []any) ([]any, error) {
	out := make([]any, len(s))
	for i, e := range s {
		n, err := normalize(e)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func normalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, e := range m {
		if IsUndefined(e) {
			continue
		}
		n, err := normalize(e)
		if err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, nil
}
