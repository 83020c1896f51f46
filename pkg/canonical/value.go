// Package canonical implements the deterministic serialization that payload digests are computed over.
//
// Two values with the same semantic content always serialize to the same bytes: object members are
// emitted sorted by the UTF-8 bytes of their keys, sequences keep their order, and scalars use a single
// fixed textual form. Numbers use the RFC 8785 (ECMAScript shortest round-trip) form and strings the
// JSON.stringify escapes. Key order is byte order, not the UTF-16 order of RFC 8785 or Array.prototype.sort:
// the two differ for keys mixing characters above U+FFFF with U+E000 to U+FFFF.
package canonical

import (
	"errors"
	"fmt"
)

var ErrEncoding = errors.New("value cannot be canonicalized")

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is the closed set of structured payload values. Only the types in this package implement it.
type Value interface {
	Kind() Kind
	isValue()
}

type (
	Null   struct{}
	Bool   bool
	Number float64
	String string
	Array  []Value

	// Object keeps members in insertion order. Canonical output sorts them; Marshal does not.
	Object []Member

	Member struct {
		Key   string
		Value Value
	}
)

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

func (Null) isValue()   {}
func (Bool) isValue()   {}
func (Number) isValue() {}
func (String) isValue() {}
func (Array) isValue()  {}
func (Object) isValue() {}

func (o Object) Get(key string) (Value, bool) {
	for _, member := range o {
		if member.Key == key {
			return member.Value, true
		}
	}

	return nil, false
}

func (o Object) Keys() []string {
	keys := make([]string, len(o))
	for i, member := range o {
		keys[i] = member.Key
	}

	return keys
}

// Set replaces the value of an existing member, or appends a new one.
func (o Object) Set(key string, value Value) Object {
	for i, member := range o {
		if member.Key == key {
			o[i].Value = value
			return o
		}
	}

	return append(o, Member{Key: key, Value: value})
}
