package canonical

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"unicode/utf8"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// Canonicalize serializes v deterministically. Non-finite numbers, invalid UTF-8, duplicate object
// keys and cyclic structures are rejected with ErrEncoding.
func Canonicalize(v Value) ([]byte, error) {
	enc := newEncoder(true)
	if err := enc.encode(v); err != nil {
		return nil, err
	}

	return enc.buf.Bytes(), nil
}

// Marshal serializes v as compact JSON, keeping object members in insertion order.
func Marshal(v Value) ([]byte, error) {
	enc := newEncoder(false)
	if err := enc.encode(v); err != nil {
		return nil, err
	}

	return enc.buf.Bytes(), nil
}

type encoder struct {
	buf      bytes.Buffer
	sortKeys bool
	visiting map[containerKey]struct{}
}

func newEncoder(sortKeys bool) *encoder {
	return &encoder{
		sortKeys: sortKeys,
		visiting: make(map[containerKey]struct{}),
	}
}

func (e *encoder) encode(v Value) error {
	switch val := v.(type) {
	case nil, Null:
		e.buf.WriteString("null")
	case Bool:
		if val {
			e.buf.WriteString("true")
		} else {
			e.buf.WriteString("false")
		}
	case Number:
		return e.encodeNumber(float64(val))
	case String:
		return e.encodeString(string(val))
	case Array:
		return e.encodeArray(val)
	case Object:
		return e.encodeObject(val)
	default:
		return fmt.Errorf("%w: unsupported value type %T", ErrEncoding, v)
	}

	return nil
}

func (e *encoder) encodeNumber(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite number %v", ErrEncoding, f)
	}

	s, err := jsoncanonicalizer.NumberToJSON(f)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEncoding, err.Error())
	}

	e.buf.WriteString(s)
	return nil
}

const hexDigits = "0123456789abcdef"

// encodeString escapes exactly what JSON.stringify escapes.
func (e *encoder) encodeString(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: invalid UTF-8 in string", ErrEncoding)
	}

	e.buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			e.buf.WriteString(`\"`)
		case '\\':
			e.buf.WriteString(`\\`)
		case '\b':
			e.buf.WriteString(`\b`)
		case '\f':
			e.buf.WriteString(`\f`)
		case '\n':
			e.buf.WriteString(`\n`)
		case '\r':
			e.buf.WriteString(`\r`)
		case '\t':
			e.buf.WriteString(`\t`)
		default:
			if c < 0x20 {
				e.buf.WriteString(`\u00`)
				e.buf.WriteByte(hexDigits[c>>4])
				e.buf.WriteByte(hexDigits[c&0xf])
			} else {
				e.buf.WriteByte(c)
			}
		}
	}
	e.buf.WriteByte('"')

	return nil
}

func (e *encoder) encodeArray(a Array) error {
	leave, err := e.enter(a)
	if err != nil {
		return err
	}
	defer leave()

	e.buf.WriteByte('[')
	for i, item := range a {
		if i > 0 {
			e.buf.WriteByte(',')
		}

		if err := e.encode(item); err != nil {
			return err
		}
	}
	e.buf.WriteByte(']')

	return nil
}

func (e *encoder) encodeObject(o Object) error {
	leave, err := e.enter(o)
	if err != nil {
		return err
	}
	defer leave()

	members := o
	if e.sortKeys {
		members = make(Object, len(o))
		copy(members, o)
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].Key < members[j].Key
		})

		for i := 1; i < len(members); i++ {
			if members[i].Key == members[i-1].Key {
				return fmt.Errorf("%w: duplicate key %q", ErrEncoding, members[i].Key)
			}
		}
	}

	e.buf.WriteByte('{')
	for i, member := range members {
		if i > 0 {
			e.buf.WriteByte(',')
		}

		if err := e.encodeString(member.Key); err != nil {
			return err
		}

		e.buf.WriteByte(':')

		if err := e.encode(member.Value); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')

	return nil
}

// containerKey identifies a slice or map by its backing storage and length. A prefix sub-slice shares the
// pointer of its parent but is a different value, so the length is part of the key.
type containerKey struct {
	ptr uintptr
	len int
}

// keyOf returns false for empty containers, which cannot take part in a cycle.
func keyOf(container any) (containerKey, bool) {
	rv := reflect.ValueOf(container)
	if rv.Len() == 0 {
		return containerKey{}, false
	}

	return containerKey{ptr: rv.Pointer(), len: rv.Len()}, true
}

// enter tracks the containers on the current path. A container that reappears below itself is a cycle.
func (e *encoder) enter(container any) (func(), error) {
	key, ok := keyOf(container)
	if !ok {
		return func() {}, nil
	}

	if _, ok := e.visiting[key]; ok {
		return nil, fmt.Errorf("%w: cyclic structure", ErrEncoding)
	}

	e.visiting[key] = struct{}{}
	return func() { delete(e.visiting, key) }, nil
}
