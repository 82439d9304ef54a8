package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/recall/internal/adapters/driven/config"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore persists settings to config.toml. Keys are dotted in memory
// ("llm.model") and nested tables on disk ([llm] model = ...). Every Set and
// Delete rewrites the file with mode 0600, since it may hold API keys.
type ConfigStore struct {
	config.Values

	// write serialises mutations with the file write that follows them.
	write sync.Mutex
	path  string
}

// NewConfigStore opens <dir>/config.toml, defaulting dir to ~/.recall. A
// missing file is an empty config; an unparsable one is an error.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".recall")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	s := &ConfigStore{path: filepath.Join(dir, "config.toml")}
	if err := s.Load(); err != nil {
		return nil, fmt.Errorf("load %s: %w", s.path, err)
	}
	return s, nil
}

func (s *ConfigStore) Path() string { return s.path }

func (s *ConfigStore) Set(key string, value any) error {
	s.write.Lock()
	defer s.write.Unlock()
	s.Put(key, value)
	return s.flush()
}

// Delete only touches the file when key was present.
func (s *ConfigStore) Delete(key string) error {
	s.write.Lock()
	defer s.write.Unlock()
	if !s.Remove(key) {
		return nil
	}
	return s.flush()
}

func (s *ConfigStore) Save() error {
	s.write.Lock()
	defer s.write.Unlock()
	return s.flush()
}

// Load replaces the in-memory values with the file's, discarding anything
// set since the last Save.
func (s *ConfigStore) Load() error {
	s.write.Lock()
	defer s.write.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.Replace(nil)
		return nil
	}
	if err != nil {
		return err
	}

	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return err
	}
	s.Replace(flattenMap(tree, ""))
	return nil
}

func (s *ConfigStore) flush() error {
	data, err := toml.Marshal(nestMap(s.Snapshot()))
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// flattenMap converts nested maps to dot-notation keys.
// E.g., {"a": {"b": 1}} becomes {"a.b": 1}.
func flattenMap(m map[string]any, prefix string) map[string]any {
	result := make(map[string]any)

	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenMap(nested, fullKey) {
				result[k] = v
			}
		} else {
			result[fullKey] = value
		}
	}

	return result
}

// nestMap is the inverse of flattenMap. A key that is both a value and a
// table prefix keeps the value under its full dotted name.
func nestMap(flat map[string]any) map[string]any {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	// Shorter keys first so tables are created before their leaves.
	sort.Slice(keys, func(i, j int) bool {
		return strings.Count(keys[i], ".") < strings.Count(keys[j], ".")
	})

	root := make(map[string]any)
	for _, key := range keys {
		parts := strings.Split(key, ".")
		node := root
		ok := true
		for _, part := range parts[:len(parts)-1] {
			child, exists := node[part]
			if !exists {
				next := make(map[string]any)
				node[part] = next
				node = next
				continue
			}
			next, isTable := child.(map[string]any)
			if !isTable {
				ok = false
				break
			}
			node = next
		}
		if !ok {
			root[key] = flat[key]
			continue
		}
		node[parts[len(parts)-1]] = flat[key]
	}
	return root
}

