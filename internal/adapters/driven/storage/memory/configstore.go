package memory

import (
	"github.com/custodia-labs/recall/internal/adapters/driven/config"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in process memory only.
type ConfigStore struct {
	config.Values
}

func NewConfigStore() *ConfigStore {
	return &ConfigStore{}
}

func (s *ConfigStore) Set(key string, value any) error {
	s.Put(key, value)
	return nil
}

func (s *ConfigStore) Delete(key string) error {
	s.Remove(key)
	return nil
}

func (s *ConfigStore) Load() error  { return nil }
func (s *ConfigStore) Save() error  { return nil }
func (s *ConfigStore) Path() string { return ":memory:" }
