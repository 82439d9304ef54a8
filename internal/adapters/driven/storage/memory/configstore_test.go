package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetGet(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("llm.model", "gpt-4o-mini"))
	require.NoError(t, store.Set("llm.model", "llama3"))

	val, ok := store.Get("llm.model")
	assert.True(t, ok)
	assert.Equal(t, "llama3", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, ":memory:", store.Path())
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("str", "value"))
	require.NoError(t, store.Set("int", 42))
	require.NoError(t, store.Set("int64", int64(7)))
	require.NoError(t, store.Set("float", 0.25))
	require.NoError(t, store.Set("bool", true))
	require.NoError(t, store.Set("slice", []any{"a", 1, "b"}))

	assert.Equal(t, "value", store.GetString("str"))
	assert.Equal(t, "", store.GetString("int"))
	assert.Equal(t, 42, store.GetInt("int"))
	assert.Equal(t, 7, store.GetInt("int64"))
	assert.Equal(t, 0, store.GetInt("float"))
	assert.InDelta(t, 0.25, store.GetFloat("float"), 1e-9)
	assert.InDelta(t, 42.0, store.GetFloat("int"), 1e-9)
	assert.Zero(t, store.GetFloat("str"))
	assert.True(t, store.GetBool("bool"))
	assert.False(t, store.GetBool("str"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("slice"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_Delete(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("rerank.base_url", "http://localhost:8080"))
	require.NoError(t, store.Delete("rerank.base_url"))
	require.NoError(t, store.Delete("rerank.base_url"))

	_, ok := store.Get("rerank.base_url")
	assert.False(t, ok)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("key", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("key")
		}()
	}
	wg.Wait()
	_, ok := store.Get("key")
	assert.True(t, ok)
}
