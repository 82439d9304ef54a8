package driven

// ConfigStore is the persisted key/value layer behind settings. Keys are
// dotted paths ("retrieval.strategy"); typed getters return the zero value
// for a missing key or a value of the wrong kind.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	// GetFloat widens integers.
	GetFloat(key string) float64
	GetBool(key string) bool
	GetStringSlice(key string) []string

	Set(key string, value any) error
	// Delete ignores missing keys.
	Delete(key string) error

	Load() error
	Save() error
	// Path is where Save writes; in-memory stores report ":memory:".
	Path() string
}
