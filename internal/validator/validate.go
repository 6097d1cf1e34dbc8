package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
	"strconv"
)

type undefined struct{}

// Undefined stands for a field that is absent from its enclosing object.
// It is distinct from a JSON null.
var Undefined any = undefined{}

// IsUndefined reports whether v is Undefined.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// Object is the immutable result of a Record validation.
type Object struct {
	fields map[string]any
}

// NewObject returns an Object holding a copy of fields.
func NewObject(fields map[string]any) Object {
	return Object{fields: maps.Clone(fields)}
}

// Get returns the value at key as a T, or the zero T when the key is missing
// or holds a different type.
func Get[T any](o Object, key string) T {
	t, _ := o.fields[key].(T)
	return t
}

// Has reports whether the record produced a value for key.
func (o Object) Has(key string) bool {
	_, ok := o.fields[key]
	return ok
}

// Len returns the number of fields.
func (o Object) Len() int { return len(o.fields) }

// Keys returns the field names in sorted order.
func (o Object) Keys() []string {
	return slices.Sorted(maps.Keys(o.fields))
}

// List is the immutable result of an Array validation.
type List struct {
	items []any
}

// NewList returns a List holding a copy of items.
func NewList(items ...any) List {
	return List{items: slices.Clone(items)}
}

// Len returns the number of elements.
func (l List) Len() int { return len(l.items) }

// At returns the i-th element.
func (l List) At(i int) any { return l.items[i] }

// All iterates over the elements in order.
func (l List) All() iter.Seq2[int, any] { return slices.All(l.items) }

// Slice returns a copy of the elements.
func (l List) Slice() []any { return slices.Clone(l.items) }

// Validate runs n against raw. path is the location of raw within the
// enclosing document and is never modified.
func (n *Node) Validate(raw any, path []string) (any, error) {
	return validate(n, raw, path)
}

// Decode validates raw and asserts the result to T.
func Decode[T any](n *Node, raw any, path ...string) (T, error) {
	var zero T
	v, err := validate(n, raw, path)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("validator: result is %T, not %T", v, zero)
	}
	return t, nil
}

// DecodeJSON parses data and validates it with n. JSON syntax errors are
// returned as they come from encoding/json.
func DecodeJSON[T any](n *Node, data []byte, path ...string) (T, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](n, raw, path...)
}

func validate(n *Node, raw any, path []string) (any, error) {
	switch n.kind {
	case kindString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return nil, newError(path, "must be a string")

	case kindNumber:
		f, ok := toFloat(raw)
		if !ok {
			return nil, newError(path, "must be a number")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, newError(path, "must be a finite number")
		}
		return f, nil

	case kindBoolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
		return nil, newError(path, "must be a boolean")

	case kindAnyObject:
		switch v := raw.(type) {
		case map[string]any, Object, []any, List:
			return deepCopy(v), nil
		}
		return nil, newError(path, "must be any object")

	case kindLiteral:
		if literalEqual(n.literal, raw) {
			return n.literal, nil
		}
		text, _ := json.Marshal(n.literal)
		return nil, newError(path, "must be literal "+string(text))

	case kindArray:
		items, ok := asArray(raw)
		if !ok {
			return nil, newError(path, "must be an array")
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := validate(n.sub, item, push(path, strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return List{items: out}, nil

	case kindRecord:
		obj, ok := asObject(raw)
		if !ok {
			return nil, newError(path, "must be an object")
		}
		out := make(map[string]any, len(n.fields))
		for _, f := range n.fields {
			in, present := obj[f.Name]
			if !present {
				in = Undefined
			}
			v, err := validate(f.Node, in, push(path, f.Name))
			if err != nil {
				return nil, err
			}
			if !IsUndefined(v) {
				out[f.Name] = v
			}
		}
		return Object{fields: out}, nil

	case kindOptional:
		if IsUndefined(raw) {
			return Undefined, nil
		}
		return validate(n.sub, raw, path)

	case kindUnion:
		problems := make([]*ValidationError, 0, len(n.alts))
		for _, alt := range n.alts {
			v, err := validate(alt, raw, path)
			if err == nil {
				return v, nil
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				return nil, err
			}
			problems = append(problems, ve)
		}
		return nil, mergeProblems(problems)

	case kindRefinement:
		v, err := validate(n.sub, raw, path)
		if err != nil {
			return nil, err
		}
		if !n.pred(v) {
			return nil, newError(path, n.message)
		}
		return v, nil

	case kindMapper:
		v, err := validate(n.sub, raw, path)
		if err != nil {
			return nil, err
		}
		return n.mapFn(v)
	}
	panic(fmt.Sprintf("validator: unknown node kind %d", n.kind))
}

// push returns a new path; the caller's slice is never appended to in place.
func push(path []string, seg string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = seg
	return out
}

func asObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, v != nil
	case Object:
		return v.fields, v.fields != nil
	}
	return nil, false
}

func asArray(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case List:
		return v.items, true
	}
	return nil, false
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func literalEqual(literal, raw any) bool {
	if f, ok := literal.(float64); ok {
		g, ok := toFloat(raw)
		return ok && f == g
	}
	switch raw.(type) {
	case nil, string, bool:
		return literal == raw
	}
	return false
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case Object:
		return deepCopy(t.fields)
	case List:
		return deepCopy(t.items)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	}
	return v
}
