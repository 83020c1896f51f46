package canonical

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSortsKeys(t *testing.T) {
	a := Object{{Key: "b", Value: Number(1)}, {Key: "a", Value: Number(2)}}
	b := Object{{Key: "a", Value: Number(2)}, {Key: "b", Value: Number(1)}}

	encodedA, err := Canonicalize(a)
	require.NoError(t, err)

	encodedB, err := Canonicalize(b)
	require.NoError(t, err)

	require.Equal(t, `{"a":2,"b":1}`, string(encodedA))
	require.Equal(t, encodedA, encodedB)
}

func TestCanonicalizeNested(t *testing.T) {
	v := Object{
		{Key: "zone", Value: String("north")},
		{Key: "readings", Value: Array{
			Object{{Key: "ph", Value: Number(7.2)}, {Key: "flow", Value: Number(88)}},
			Null{},
			Bool(true),
		}},
	}

	encoded, err := Canonicalize(v)
	require.NoError(t, err)
	require.Equal(t, `{"readings":[{"flow":88,"ph":7.2},null,true],"zone":"north"}`, string(encoded))
}

func TestCanonicalizeByteOrder(t *testing.T) {
	v := Object{
		{Key: "a", Value: Number(1)},
		{Key: "B", Value: Number(2)},
		{Key: "_", Value: Number(3)},
		{Key: "é", Value: Number(4)},
	}

	encoded, err := Canonicalize(v)
	require.NoError(t, err)
	require.Equal(t, `{"B":2,"_":3,"a":1,"é":4}`, string(encoded))
}

func TestCanonicalizeByteOrderBeyondBMP(t *testing.T) {
	// UTF-16 order would put U+1F600 (a surrogate pair from 0xD83D) before U+FF5E
	encoded, err := Canonicalize(Object{
		{Key: "\U0001F600", Value: Number(2)},
		{Key: "\uFF5E", Value: Number(1)},
	})
	require.NoError(t, err)
	require.Equal(t, "{\"\uFF5E\":1,\"\U0001F600\":2}", string(encoded))
}

func TestCanonicalizeEmpty(t *testing.T) {
	encoded, err := Canonicalize(Object{})
	require.NoError(t, err)
	require.Equal(t, "{}", string(encoded))

	encoded, err = Canonicalize(Array{})
	require.NoError(t, err)
	require.Equal(t, "[]", string(encoded))

	encoded, err = Canonicalize(nil)
	require.NoError(t, err)
	require.Equal(t, "null", string(encoded))
}

func TestCanonicalizeNumbers(t *testing.T) {
	cases := map[float64]string{
		0:         "0",
		88:        "88",
		-12:       "-12",
		3.1:       "3.1",
		0.1 + 0.2: "0.30000000000000004",
		1e21:      "1e+21",
		1e-7:      "1e-7",
		123456789: "123456789",
	}

	for input, expected := range cases {
		encoded, err := Canonicalize(Number(input))
		require.NoErrorf(t, err, "error encoding %v", input)
		require.Equalf(t, expected, string(encoded), "unexpected encoding for %v", input)
	}

	encoded, err := Canonicalize(Number(math.Copysign(0, -1)))
	require.NoError(t, err)
	require.Equal(t, "0", string(encoded))
}

func TestCanonicalizeNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Canonicalize(Array{Number(f)})
		require.ErrorIs(t, err, ErrEncoding)
	}
}

func TestCanonicalizeStringEscapes(t *testing.T) {
	encoded, err := Canonicalize(String("q\"b\\n\nt\tc\x01u é"))
	require.NoError(t, err)
	require.Equal(t, "\"q\\\"b\\\\n\\nt\\tc\\u0001u é\"", string(encoded))

	encoded, err = Canonicalize(String("\b\f\r\x1f"))
	require.NoError(t, err)
	require.Equal(t, `"\b\f\r\u001f"`, string(encoded))
}

func TestCanonicalizeInvalidUTF8(t *testing.T) {
	_, err := Canonicalize(String("\xff"))
	require.ErrorIs(t, err, ErrEncoding)

	_, err = Canonicalize(Object{{Key: "\xfe", Value: Null{}}})
	require.ErrorIs(t, err, ErrEncoding)
}

func TestCanonicalizeDuplicateKeys(t *testing.T) {
	_, err := Canonicalize(Object{{Key: "a", Value: Number(1)}, {Key: "a", Value: Number(2)}})
	require.ErrorIs(t, err, ErrEncoding)
}

func TestCanonicalizeCycle(t *testing.T) {
	arr := Array{Null{}}
	arr[0] = arr

	_, err := Canonicalize(arr)
	require.ErrorIs(t, err, ErrEncoding)

	obj := Object{{Key: "self", Value: Null{}}}
	obj[0].Value = obj

	_, err = Canonicalize(obj)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestCanonicalizeSharedNotCycle(t *testing.T) {
	shared := Array{Number(1)}
	v := Array{shared, shared}

	encoded, err := Canonicalize(v)
	require.NoError(t, err)
	require.Equal(t, "[[1],[1]]", string(encoded))
}

func TestCanonicalizePrefixSliceNotCycle(t *testing.T) {
	outer := Array{String("x"), Null{}}
	outer[1] = outer[:1]

	encoded, err := Canonicalize(outer)
	require.NoError(t, err)
	require.Equal(t, `["x",["x"]]`, string(encoded))

	// A prefix that reaches itself is still a cycle
	looped := Array{Null{}, Null{}}
	looped[0] = looped[:1]

	_, err = Canonicalize(looped)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestMarshalKeepsOrder(t *testing.T) {
	v := Object{{Key: "b", Value: Number(1)}, {Key: "a", Value: Number(2)}}

	encoded, err := Marshal(v)
	require.NoError(t, err)
	require.Equal(t, `{"b":1,"a":2}`, string(encoded))
}

func TestParseRoundTrip(t *testing.T) {
	input := []byte(`{ "deviceId": "DEV-PS-003", "sample": [1, 2.5, -0, true, null], "nested": {"z": 1, "a": "x"} }`)

	v, err := Parse(input)
	require.NoError(t, err)

	marshalled, err := Marshal(v)
	require.NoError(t, err)
	require.Equal(t, `{"deviceId":"DEV-PS-003","sample":[1,2.5,0,true,null],"nested":{"z":1,"a":"x"}}`, string(marshalled))

	encoded, err := Canonicalize(v)
	require.NoError(t, err)
	require.Equal(t, `{"deviceId":"DEV-PS-003","nested":{"a":"x","z":1},"sample":[1,2.5,0,true,null]}`, string(encoded))
}

func TestParseRejects(t *testing.T) {
	inputs := []string{
		``,
		`{`,
		`{"a":1,"a":2}`,
		`{"a":1} {"b":2}`,
		`[1,]`,
		`1e400`,
	}

	for _, input := range inputs {
		_, err := Parse([]byte(input))
		require.ErrorIsf(t, err, ErrEncoding, "expected %q to be rejected", input)
	}
}

func TestParseScalars(t *testing.T) {
	v, err := Parse([]byte(`"hi"`))
	require.NoError(t, err)
	require.Equal(t, String("hi"), v)
	require.Equal(t, KindString, v.Kind())

	v, err = Parse([]byte(`null`))
	require.NoError(t, err)
	require.Equal(t, KindNull, v.Kind())
}

func TestFromAny(t *testing.T) {
	type info struct {
		Zone string `json:"zone"`
	}

	v, err := FromAny(map[string]any{
		"b":    1,
		"a":    []any{"x", 2.5, nil, false},
		"info": info{Zone: "north"},
	})
	require.NoError(t, err)

	encoded, err := Canonicalize(v)
	require.NoError(t, err)
	require.Equal(t, `{"a":["x",2.5,null,false],"b":1,"info":{"zone":"north"}}`, string(encoded))
}

func TestFromAnyCycle(t *testing.T) {
	m := map[string]any{}
	m["self"] = m

	_, err := FromAny(m)
	require.ErrorIs(t, err, ErrEncoding)

	s := []any{nil}
	s[0] = s

	_, err = FromAny(s)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestFromAnyPrefixSliceNotCycle(t *testing.T) {
	outer := []any{"x", nil}
	outer[1] = outer[:1]

	v, err := FromAny(outer)
	require.NoError(t, err)

	encoded, err := Canonicalize(v)
	require.NoError(t, err)
	require.Equal(t, `["x",["x"]]`, string(encoded))
}
