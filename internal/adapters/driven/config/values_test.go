package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValues_ZeroValue(t *testing.T) {
	var v Values
	_, ok := v.Get("missing")
	assert.False(t, ok)
	assert.Empty(t, v.Keys())
	assert.False(t, v.Remove("missing"))

	v.Put("a", 1)
	assert.Equal(t, 1, v.GetInt("a"))
}

func TestValues_Getters(t *testing.T) {
	var v Values
	v.Replace(map[string]any{
		"s":     "text",
		"i64":   int64(9),
		"f":     2.75,
		"b":     true,
		"list":  []any{"x", 3, "y"},
		"strs":  []string{"p"},
		"wrong": struct{}{},
	})

	assert.Equal(t, "text", v.GetString("s"))
	assert.Equal(t, 9, v.GetInt("i64"))
	assert.Equal(t, 2, v.GetInt("f"))
	assert.InDelta(t, 9.0, v.GetFloat("i64"), 1e-9)
	assert.True(t, v.GetBool("b"))
	assert.Equal(t, []string{"x", "y"}, v.GetStringSlice("list"))
	assert.Equal(t, []string{"p"}, v.GetStringSlice("strs"))

	assert.Empty(t, v.GetString("wrong"))
	assert.Zero(t, v.GetInt("wrong"))
	assert.False(t, v.GetBool("wrong"))
	assert.Nil(t, v.GetStringSlice("wrong"))
}

func TestValues_SnapshotIsACopy(t *testing.T) {
	var v Values
	v.Put("k", "v")
	snap := v.Snapshot()
	snap["k"] = "changed"
	assert.Equal(t, "v", v.GetString("k"))

	assert.True(t, v.Remove("k"))
	assert.Equal(t, []string{}, v.Keys())
}
