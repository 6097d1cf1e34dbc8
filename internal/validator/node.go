// Package validator converts untyped decoded JSON (the output of
// json.Unmarshal into an any) into typed values, or fails with a
// *ValidationError that names the offending field path.
//
// A validator is a *Node. Nodes form a closed set of variants (primitives,
// literals, arrays, records, optionals, unions, refinements and mappers)
// and are interpreted by a single recursive dispatch in validate.go. Nodes
// are immutable once constructed and safe for concurrent use, so schemas
// are normally built once as package-level variables:
//
//	var loginRequest = validator.Record(
//		validator.F("username", validator.String()),
//		validator.F("signature", validator.HexBytes()),
//	)
package validator

import (
	"fmt"
	"regexp"
)

type kind uint8

const (
	kindString kind = iota
	kindNumber
	kindBoolean
	kindAnyObject
	kindLiteral
	kindArray
	kindRecord
	kindOptional
	kindUnion
	kindRefinement
	kindMapper
)

// Node is a single validator in a schema tree.
type Node struct {
	kind    kind
	literal any
	sub     *Node
	fields  []Field
	alts    []*Node
	pred    func(any) bool
	message string
	mapFn   func(any) (any, error)
}

// Field is one declared member of a Record.
type Field struct {
	Name string
	Node *Node
}

// F is shorthand for Field{Name: name, Node: n}.
func F(name string, n *Node) Field {
	return Field{Name: name, Node: n}
}

var (
	stringNode    = &Node{kind: kindString}
	numberNode    = &Node{kind: kindNumber}
	booleanNode   = &Node{kind: kindBoolean}
	anyObjectNode = &Node{kind: kindAnyObject}
)

// String accepts only JSON strings and yields a string.
func String() *Node { return stringNode }

// Number accepts finite numbers and yields a float64.
func Number() *Node { return numberNode }

// Boolean accepts only JSON booleans.
func Boolean() *Node { return booleanNode }

// AnyObject accepts any JSON object or array and yields a deep copy of it.
func AnyObject() *Node { return anyObjectNode }

// Literal accepts exactly one constant value. Numeric literals are compared
// as float64, so Literal(128) matches a decoded 128.0.
func Literal(v any) *Node {
	switch v.(type) {
	case nil, string, bool:
		return &Node{kind: kindLiteral, literal: v}
	}
	f, ok := toFloat(v)
	if !ok {
		panic(fmt.Sprintf("validator: unsupported literal type %T", v))
	}
	return &Node{kind: kindLiteral, literal: f}
}

// Array validates every element with elem.
func Array(elem *Node) *Node {
	mustNode(elem)
	return &Node{kind: kindArray, sub: elem}
}

// Record validates an object with a fixed set of fields, validated in
// declaration order. Fields missing from the input are presented to their
// validator as Undefined; undeclared input fields are dropped. The result
// is an Object holding exactly the declared fields that were not Undefined.
func Record(fields ...Field) *Node {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		mustNode(f.Node)
		if _, dup := seen[f.Name]; dup {
			panic("validator: duplicate record field " + f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return &Node{kind: kindRecord, fields: append([]Field(nil), fields...)}
}

// Optional passes Undefined through and delegates everything else,
// including null, to sub.
func Optional(sub *Node) *Node {
	mustNode(sub)
	return &Node{kind: kindOptional, sub: sub}
}

// Union tries each alternative in order and returns the first success.
// It panics when given fewer than two alternatives.
func Union(alts ...*Node) *Node {
	if len(alts) < 2 {
		panic("validator: union must provide at least two alternatives")
	}
	for _, a := range alts {
		mustNode(a)
	}
	return &Node{kind: kindUnion, alts: append([]*Node(nil), alts...)}
}

// Refine applies pred to the value produced by sub. A false result fails at
// the current path with message, or "invalid" when message is empty.
// pred must be free of observable side effects.
func Refine[T any](sub *Node, pred func(T) bool, message string) *Node {
	mustNode(sub)
	if message == "" {
		message = "invalid"
	}
	return &Node{
		kind:    kindRefinement,
		sub:     sub,
		message: message,
		pred: func(v any) bool {
			t, ok := v.(T)
			return ok && pred(t)
		},
	}
}

// Map transforms the value produced by sub. Errors returned by f are
// propagated unchanged; Union does not treat them as a failed alternative
// unless they are *ValidationError.
func Map[A, B any](sub *Node, f func(A) (B, error)) *Node {
	mustNode(sub)
	return &Node{
		kind: kindMapper,
		sub:  sub,
		mapFn: func(v any) (any, error) {
			a, ok := v.(A)
			if !ok {
				var zero A
				return nil, fmt.Errorf("validator: cannot map %T as %T", v, zero)
			}
			return f(a)
		},
	}
}

// Matching is String refined by re. The pattern is compiled by the caller,
// once.
func Matching(re *regexp.Regexp, message string) *Node {
	return Refine(String(), re.MatchString, message)
}

// Optional is the method form of Optional(n).
func (n *Node) Optional() *Node {
	return Optional(n)
}

func mustNode(n *Node) {
	if n == nil {
		panic("validator: nil node")
	}
}
