// Package config holds the flat key/value map behind every ConfigStore
// adapter. Subpackages decide where it is persisted.
package config

import (
	"sort"
	"sync"
)

// Values is a concurrency-safe map of dotted keys with the typed getters of
// driven.ConfigStore. The zero value is ready to use.
type Values struct {
	mu sync.RWMutex
	m  map[string]any
}

func (v *Values) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.m[key]
	return val, ok
}

func (v *Values) GetString(key string) string {
	val, _ := v.Get(key)
	s, _ := val.(string)
	return s
}

// GetInt truncates floats; TOML decodes integers as int64.
func (v *Values) GetInt(key string) int {
	val, _ := v.Get(key)
	n, ok := number(val)
	if !ok {
		return 0
	}
	return int(n)
}

// GetFloat widens integers, since TOML writes 1.0 back as 1.
func (v *Values) GetFloat(key string) float64 {
	val, _ := v.Get(key)
	n, _ := number(val)
	return n
}

func (v *Values) GetBool(key string) bool {
	val, _ := v.Get(key)
	b, _ := val.(bool)
	return b
}

// GetStringSlice accepts []string or a decoded []any, dropping non-strings.
func (v *Values) GetStringSlice(key string) []string {
	val, _ := v.Get(key)
	switch list := val.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Put sets key.
func (v *Values) Put(key string, value any) {
	v.mu.Lock()
	if v.m == nil {
		v.m = map[string]any{}
	}
	v.m[key] = value
	v.mu.Unlock()
}

// Remove deletes key and reports whether it was present.
func (v *Values) Remove(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.m[key]
	delete(v.m, key)
	return ok
}

// Keys lists stored keys, sorted.
func (v *Values) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot copies the map.
func (v *Values) Snapshot() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]any, len(v.m))
	for k, val := range v.m {
		out[k] = val
	}
	return out
}

// Replace swaps in m wholesale.
func (v *Values) Replace(m map[string]any) {
	if m == nil {
		m = map[string]any{}
	}
	v.mu.Lock()
	v.m = m
	v.mu.Unlock()
}

func number(val any) (float64, bool) {
	switch n := val.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
