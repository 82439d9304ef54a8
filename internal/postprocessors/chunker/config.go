package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Unit is what chunk sizes are measured in.
type Unit string

// Size units.
const (
	UnitChars  Unit = "chars"
	UnitTokens Unit = "tokens"
)

// Backend selects the sentence boundary detector.
type Backend string

// Sentence backends.
const (
	// BackendUniseg uses Unicode UAX#29 sentence boundaries.
	BackendUniseg Backend = "uniseg"

	// BackendRegex splits after terminal punctuation.
	BackendRegex Backend = "regex"
)

// Strategy selects how text is split.
type Strategy string

// Splitting strategies.
const (
	StrategySentence Strategy = "sentence"
	StrategyWindow   Strategy = "window"
	StrategyAdaptive Strategy = "adaptive"
)

// Defaults.
const (
	DefaultMaxChunkSize   = 256
	DefaultMinChunkSize   = 32
	DefaultLatinThreshold = 0x0250
	DefaultLatinRatio     = 0.8
)

// Config controls splitting.
type Config struct {
	// MaxChunkSize is the largest chunk, in Unit.
	MaxChunkSize int `validate:"gt=0"`

	// MinChunkSize is the size under which adjacent sentences are merged.
	MinChunkSize int `validate:"gte=0"`

	// Overlap is how much consecutive chunks share, in Unit.
	Overlap int `validate:"gte=0"`

	Unit     Unit     `validate:"oneof=chars tokens"`
	Backend  Backend  `validate:"oneof=uniseg regex"`
	Strategy Strategy `validate:"oneof=sentence window adaptive"`

	// LatinThreshold is the codepoint under which a rune counts as Latin-like.
	LatinThreshold rune `validate:"gt=0"`

	// LatinRatio is the Latin-like fraction at which text is split by sentence.
	LatinRatio float64 `validate:"gte=0,lte=1"`
}

// DefaultConfig returns the adaptive token-based configuration.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize:   DefaultMaxChunkSize,
		MinChunkSize:   DefaultMinChunkSize,
		Unit:           UnitTokens,
		Backend:        BackendUniseg,
		Strategy:       StrategyAdaptive,
		LatinThreshold: DefaultLatinThreshold,
		LatinRatio:     DefaultLatinRatio,
	}
}

var validate = validator.New()

// Validate reports the first invalid field as a *domain.ConfigurationError.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return domain.NewConfigurationError(strings.ToLower(fe.Field()),
				"failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value())
		}
		return domain.NewConfigurationError("", "%v", err)
	}
	if c.Overlap >= c.MaxChunkSize {
		return domain.NewConfigurationError("overlap",
			"%d must be less than max chunk size %d", c.Overlap, c.MaxChunkSize)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("%s/%s max=%d min=%d overlap=%d %s",
		c.Strategy, c.Backend, c.MaxChunkSize, c.MinChunkSize, c.Overlap, c.Unit)
}
