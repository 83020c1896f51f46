package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Parse decodes a single JSON document into a Value, keeping object members in document order.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrEncoding)
	}

	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEncoding, err.Error())
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return nil, fmt.Errorf("%w: unexpected delimiter %q", ErrEncoding, t.String())
		}
	case string:
		return String(t), nil
	case json.Number:
		return parseNumber(t)
	case bool:
		return Bool(t), nil
	case nil:
		return Null{}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected token %T", ErrEncoding, tok)
	}
}

func parseObject(dec *json.Decoder) (Value, error) {
	obj := Object{}
	seen := make(map[string]struct{})

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrEncoding, err.Error())
		}

		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: object key must be a string", ErrEncoding)
		}

		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrEncoding, key)
		}
		seen[key] = struct{}{}

		value, err := parseValue(dec)
		if err != nil {
			return nil, err
		}

		obj = append(obj, Member{Key: key, Value: value})
	}

	// Closing brace
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEncoding, err.Error())
	}

	return obj, nil
}

func parseArray(dec *json.Decoder) (Value, error) {
	arr := Array{}

	for dec.More() {
		value, err := parseValue(dec)
		if err != nil {
			return nil, err
		}

		arr = append(arr, value)
	}

	// Closing bracket
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEncoding, err.Error())
	}

	return arr, nil
}

func parseNumber(n json.Number) (Value, error) {
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: number %s out of range", ErrEncoding, n.String())
	}

	return Number(f), nil
}
