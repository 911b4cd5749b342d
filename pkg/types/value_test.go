package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `{"answer": 42}`, want: `{"answer":42}`},
		{in: `{"b": 1, "a": [true, null, "x"]}`, want: `{"a":[true,null,"x"],"b":1}`},
		{in: `"<tag> & more"`, want: `"<tag> & more"`},
		{in: `1.50`, want: `1.50`},
		{in: `1e3`, want: `1e3`},
		{in: `  []  `, want: `[]`},
		{in: `{}`, want: `{}`},
		{in: `"line\nbreak"`, want: `"line\nbreak"`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseValue([]byte(tt.in))
			require.NoError(t, err)

			out, err := v.MarshalJSON()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))

			back, err := ParseValue(out)
			require.NoError(t, err)
			assert.True(t, v.Equal(back))
		})
	}
}

func TestMarshalRejectsInvalidUTF8(t *testing.T) {
	for _, v := range []Value{
		String("tok\xff\xfe"),
		List(String("\xc3")),
		Map(map[string]Value{"k\xff": Null()}),
	} {
		_, err := v.MarshalJSON()
		assert.ErrorIs(t, err, ErrUnsupportedValue)
	}

	// Valid multi-byte text is kept as is.
	out, err := String("héllo <ü>").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"héllo <ü>"`, string(out))
}

func TestParseValueRejectsGarbage(t *testing.T) {
	for _, in := range []string{``, `{`, `{"a":1} {"b":2}`, `nope`} {
		_, err := ParseValue([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestValueOf(t *testing.T) {
	v, err := ValueOf(map[string]any{
		"int":    7,
		"uint":   uint64(math.MaxUint64),
		"float":  0.5,
		"list":   []string{"a", "b"},
		"nested": map[string]string{"k": "v"},
		"value":  Bool(true),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"float":0.5,"int":7,"list":["a","b"],"nested":{"k":"v"},"uint":18446744073709551615,"value":true}`, v.String())

	_, err = ValueOf(math.NaN())
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = ValueOf(struct{}{})
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = ValueOf([]any{1, func() {}})
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = Number("forty-two")
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestValueEqual(t *testing.T) {
	a := MustParseValue(`{"x": [1, 2, {"y": null}]}`)
	b := MustParseValue(`{"x":[1,2,{"y":null}]}`)
	assert.True(t, a.Equal(b))

	assert.False(t, String("42").Equal(Int(42)))
	assert.False(t, MustParseValue(`42`).Equal(MustParseValue(`42.0`)))
	assert.False(t, MustParseValue(`{"a":1}`).Equal(MustParseValue(`{"b":1}`)))
	assert.False(t, MustParseValue(`[1]`).Equal(MustParseValue(`[1,1]`)))
	assert.True(t, Null().Equal(Value{}))
}

func TestValueAccessors(t *testing.T) {
	v := MustParseValue(`{"answer": 42, "name": "vqe", "ok": true, "items": [1]}`)
	assert.Equal(t, KindMap, v.Kind())
	assert.Equal(t, 4, v.Len())

	name, ok := v.Get("name")
	require.True(t, ok)
	s, ok := name.Str()
	assert.True(t, ok)
	assert.Equal(t, "vqe", s)

	answer, _ := v.Get("answer")
	n, ok := answer.NumberValue()
	assert.True(t, ok)
	assert.Equal(t, json.Number("42"), n)

	okv, _ := v.Get("ok")
	bv, ok := okv.BoolValue()
	assert.True(t, ok && bv)

	items, _ := v.Get("items")
	list, ok := items.Items()
	require.True(t, ok)
	assert.Len(t, list, 1)

	_, ok = v.Get("missing")
	assert.False(t, ok)
	_, ok = String("x").Get("x")
	assert.False(t, ok)

	assert.Equal(t, map[string]any{
		"answer": json.Number("42"),
		"name":   "vqe",
		"ok":     true,
		"items":  []any{json.Number("1")},
	}, v.Interface())
}

func TestValueTextAndClone(t *testing.T) {
	assert.Equal(t, "raw string", String("raw string").Text())
	assert.Equal(t, `"raw string"`, String("raw string").String())
	assert.Equal(t, `{"answer":42}`, MustParseValue(`{"answer":42}`).Text())
	assert.Equal(t, "null", Null().Text())

	orig := MustParseValue(`{"a":[1,2]}`)
	clone := orig.Clone()
	fields, _ := clone.Fields()
	fields["a"] = Int(0)
	assert.True(t, orig.Equal(MustParseValue(`{"a":[1,2]}`)))
}

func TestBundle(t *testing.T) {
	b := Bundle{
		EnvJobID:        String("42"),
		EnvGatewayToken: String("42"),
		EnvJobArguments: MustParseValue(`{"answer":42}`),
	}
	assert.Equal(t, []string{EnvGatewayToken, EnvJobArguments, EnvJobID}, b.Keys())

	c := b.Clone()
	assert.True(t, b.Equal(c))

	c[EnvJobID] = String("43")
	assert.False(t, b.Equal(c))
	assert.True(t, b[EnvJobID].Equal(String("42")))

	delete(c, EnvJobID)
	assert.False(t, b.Equal(c))
	assert.Nil(t, Bundle(nil).Clone())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8000", cfg.Gateway.Host)
	assert.Equal(t, AuthDefault, cfg.Auth.Mechanism)
	assert.Equal(t, SchemeFernet, cfg.Crypto.Scheme)

	bad := DefaultConfig()
	bad.Auth.Mechanism = "oauth"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Crypto.Scheme = "rot13"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Crypto.Scheme = SchemeAge
	bad.Crypto.AgeWorkFactor = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Gateway.Host = ""
	assert.Error(t, bad.Validate())
}
