package framework

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAccessorsMatchKind(t *testing.T) {
	s, ok := StringValue("a").AsString()
	require.True(t, ok)
	assert.Equal(t, "a", s)

	_, ok = IntValue(3).AsString()
	assert.False(t, ok)

	i, ok := FloatValue(4).AsInt()
	require.True(t, ok, "integral floats convert")
	assert.Equal(t, int64(4), i)

	_, ok = FloatValue(4.5).AsInt()
	assert.False(t, ok)

	assert.Equal(t, "a, b", ListValue([]string{"a", "b"}).Text())
	assert.Equal(t, "true", BoolValue(true).Text())
}

func TestValueEqualComparesVariant(t *testing.T) {
	assert.True(t, IntValue(1).Equal(IntValue(1)))
	assert.False(t, IntValue(1).Equal(StringValue("1")))
	assert.True(t, ListValue([]string{"x"}).Equal(ListValue([]string{"x"})))
	assert.False(t, ListValue([]string{"x"}).Equal(ListValue([]string{"x", "y"})))
}

func TestValueJSONUsesNativeTypes(t *testing.T) {
	params := Params{
		"filepath": StringValue("a.py"),
		"count":    IntValue(2),
		"ratio":    FloatValue(0.5),
		"force":    BoolValue(true),
		"files":    ListValue([]string{"a", "b"}),
	}
	data, err := json.Marshal(params)
	require.NoError(t, err)
	assert.JSONEq(t, `{"filepath":"a.py","count":2,"ratio":0.5,"force":true,"files":["a","b"]}`, string(data))

	var decoded Params
	require.NoError(t, json.Unmarshal(data, &decoded))
	for k, v := range params {
		assert.True(t, v.Equal(decoded[k]), k)
	}
}

func TestParamsHelpersTolerateText(t *testing.T) {
	p := Params{"force": StringValue("TRUE"), "n": StringValue("12"), "one": StringValue("x")}
	assert.True(t, p.Bool("force", false))
	assert.Equal(t, int64(12), p.Int("n", 0))
	assert.Equal(t, int64(7), p.Int("missing", 7))
	assert.Equal(t, []string{"x"}, p.List("one"))
	assert.Equal(t, []string{"force", "n", "one"}, p.Keys())
}
