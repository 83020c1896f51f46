package canonical

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FromAny converts a generic Go value, such as the result of json.Unmarshal into an any, into a Value.
// Types outside the JSON data model are round-tripped through encoding/json first.
func FromAny(v any) (Value, error) {
	c := converter{visiting: make(map[containerKey]struct{})}
	return c.convert(v)
}

type converter struct {
	visiting map[containerKey]struct{}
}

func (c *converter) convert(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		return parseNumber(val)
	case float64:
		return Number(val), nil
	case float32:
		return Number(val), nil
	case int:
		return Number(val), nil
	case int8:
		return Number(val), nil
	case int16:
		return Number(val), nil
	case int32:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case uint:
		return Number(val), nil
	case uint8:
		return Number(val), nil
	case uint16:
		return Number(val), nil
	case uint32:
		return Number(val), nil
	case uint64:
		return Number(val), nil
	case map[string]any:
		return c.convertMap(val)
	case []any:
		return c.convertSlice(val)
	default:
		marshalled, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrEncoding, err.Error())
		}

		return Parse(marshalled)
	}
}

func (c *converter) convertMap(m map[string]any) (Value, error) {
	leave, err := c.enter(m)
	if err != nil {
		return nil, err
	}
	defer leave()

	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	obj := make(Object, 0, len(keys))
	for _, key := range keys {
		value, err := c.convert(m[key])
		if err != nil {
			return nil, err
		}

		obj = append(obj, Member{Key: key, Value: value})
	}

	return obj, nil
}

func (c *converter) convertSlice(s []any) (Value, error) {
	leave, err := c.enter(s)
	if err != nil {
		return nil, err
	}
	defer leave()

	arr := make(Array, 0, len(s))
	for _, item := range s {
		value, err := c.convert(item)
		if err != nil {
			return nil, err
		}

		arr = append(arr, value)
	}

	return arr, nil
}

func (c *converter) enter(container any) (func(), error) {
	key, ok := keyOf(container)
	if !ok {
		return func() {}, nil
	}

	if _, ok := c.visiting[key]; ok {
		return nil, fmt.Errorf("%w: cyclic structure", ErrEncoding)
	}

	c.visiting[key] = struct{}{}
	return func() { delete(c.visiting, key) }, nil
}
