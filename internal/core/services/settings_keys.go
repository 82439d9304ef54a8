package services

import (
	"fmt"
	"strconv"

	"github.com/custodia-labs/recall/internal/core/domain"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
)

// settingKey binds a dotted config key to one AppSettings field.
type settingKey struct {
	kind   valueKind
	secret bool
	get    func(*domain.AppSettings) any
	set    func(*domain.AppSettings, any) error
}

func stringKey(field func(*domain.AppSettings) *string) settingKey {
	return settingKey{
		kind: kindString,
		get:  func(s *domain.AppSettings) any { return *field(s) },
		set: func(s *domain.AppSettings, v any) error {
			*field(s) = v.(string)
			return nil
		},
	}
}

func secretKey(field func(*domain.AppSettings) *string) settingKey {
	k := stringKey(field)
	k.secret = true
	return k
}

func enumKey[T ~string](field func(*domain.AppSettings) *T, valid func(T) bool) settingKey {
	return settingKey{
		kind: kindString,
		get:  func(s *domain.AppSettings) any { return string(*field(s)) },
		set: func(s *domain.AppSettings, v any) error {
			val := T(v.(string))
			if valid != nil && !valid(val) {
				return fmt.Errorf("%w: %q", domain.ErrUnsupportedType, val)
			}
			*field(s) = val
			return nil
		},
	}
}

func intKey(field func(*domain.AppSettings) *int) settingKey {
	return settingKey{
		kind: kindInt,
		get:  func(s *domain.AppSettings) any { return *field(s) },
		set: func(s *domain.AppSettings, v any) error {
			*field(s) = v.(int)
			return nil
		},
	}
}

func floatKey(field func(*domain.AppSettings) *float64) settingKey {
	return settingKey{
		kind: kindFloat,
		get:  func(s *domain.AppSettings) any { return *field(s) },
		set: func(s *domain.AppSettings, v any) error {
			*field(s) = v.(float64)
			return nil
		},
	}
}

func boolKey(field func(*domain.AppSettings) *bool) settingKey {
	return settingKey{
		kind: kindBool,
		get:  func(s *domain.AppSettings) any { return *field(s) },
		set: func(s *domain.AppSettings, v any) error {
			*field(s) = v.(bool)
			return nil
		},
	}
}

// settingKeys maps config keys to settings fields.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
var settingKeys = map[string]settingKey{
	"embedding.provider":   enumKey(func(s *domain.AppSettings) *domain.AIProvider { return &s.Embedding.Provider }, domain.AIProvider.IsValid),
	"embedding.model":      stringKey(func(s *domain.AppSettings) *string { return &s.Embedding.Model }),
	"embedding.base_url":   stringKey(func(s *domain.AppSettings) *string { return &s.Embedding.BaseURL }),
	"embedding.api_key":    secretKey(func(s *domain.AppSettings) *string { return &s.Embedding.APIKey }),
	"embedding.normalized": boolKey(func(s *domain.AppSettings) *bool { return &s.Embedding.Normalized }),

	"llm.provider":       enumKey(func(s *domain.AppSettings) *domain.AIProvider { return &s.LLM.Provider }, domain.AIProvider.IsValid),
	"llm.model":          stringKey(func(s *domain.AppSettings) *string { return &s.LLM.Model }),
	"llm.base_url":       stringKey(func(s *domain.AppSettings) *string { return &s.LLM.BaseURL }),
	"llm.api_key":        secretKey(func(s *domain.AppSettings) *string { return &s.LLM.APIKey }),
	"llm.context_window": intKey(func(s *domain.AppSettings) *int { return &s.LLM.ContextWindow }),

	"rerank.base_url": stringKey(func(s *domain.AppSettings) *string { return &s.Rerank.BaseURL }),
	"rerank.model":    stringKey(func(s *domain.AppSettings) *string { return &s.Rerank.Model }),
	"rerank.api_key":  secretKey(func(s *domain.AppSettings) *string { return &s.Rerank.APIKey }),

	"segmenter.strategy":       stringKey(func(s *domain.AppSettings) *string { return &s.Segmenter.Strategy }),
	"segmenter.backend":        stringKey(func(s *domain.AppSettings) *string { return &s.Segmenter.Backend }),
	"segmenter.unit":           stringKey(func(s *domain.AppSettings) *string { return &s.Segmenter.Unit }),
	"segmenter.max_chunk_size": intKey(func(s *domain.AppSettings) *int { return &s.Segmenter.MaxChunkSize }),
	"segmenter.min_chunk_size": intKey(func(s *domain.AppSettings) *int { return &s.Segmenter.MinChunkSize }),
	"segmenter.overlap":        intKey(func(s *domain.AppSettings) *int { return &s.Segmenter.Overlap }),

	"index.summary_tokens":        intKey(func(s *domain.AppSettings) *int { return &s.Index.SummaryTokens }),
	"index.max_depth":             intKey(func(s *domain.AppSettings) *int { return &s.Index.MaxDepth }),
	"index.min_viable_chunk_size": intKey(func(s *domain.AppSettings) *int { return &s.Index.MinViableChunkSize }),
	"index.overhead_margin":       intKey(func(s *domain.AppSettings) *int { return &s.Index.OverheadMargin }),
	"index.rolling_context":       boolKey(func(s *domain.AppSettings) *bool { return &s.Index.RollingContext }),

	"retrieval.strategy":             enumKey(func(s *domain.AppSettings) *domain.Strategy { return &s.Retrieval.Strategy }, domain.Strategy.IsValid),
	"retrieval.metric":               enumKey(func(s *domain.AppSettings) *domain.Metric { return &s.Retrieval.Metric }, domain.Metric.IsValid),
	"retrieval.max_items":            intKey(func(s *domain.AppSettings) *int { return &s.Retrieval.MaxItems }),
	"retrieval.max_tokens":           intKey(func(s *domain.AppSettings) *int { return &s.Retrieval.MaxTokens }),
	"retrieval.overshoot":            intKey(func(s *domain.AppSettings) *int { return &s.Retrieval.Overshoot }),
	"retrieval.alpha_recency":        floatKey(func(s *domain.AppSettings) *float64 { return &s.Retrieval.AlphaRecency }),
	"retrieval.alpha_importance":     floatKey(func(s *domain.AppSettings) *float64 { return &s.Retrieval.AlphaImportance }),
	"retrieval.alpha_relevance":      floatKey(func(s *domain.AppSettings) *float64 { return &s.Retrieval.AlphaRelevance }),
	"retrieval.half_life_seconds":    floatKey(func(s *domain.AppSettings) *float64 { return &s.Retrieval.HalfLifeSeconds }),
	"retrieval.max_importance_score": floatKey(func(s *domain.AppSettings) *float64 { return &s.Retrieval.MaxImportanceScore }),

	"invocation.max_attempts":        intKey(func(s *domain.AppSettings) *int { return &s.Invocation.MaxAttempts }),
	"invocation.initial_backoff_ms":  intKey(func(s *domain.AppSettings) *int { return &s.Invocation.InitialBackoffMs }),
	"invocation.max_backoff_ms":      intKey(func(s *domain.AppSettings) *int { return &s.Invocation.MaxBackoffMs }),
	"invocation.concurrency":         intKey(func(s *domain.AppSettings) *int { return &s.Invocation.Concurrency }),
	"invocation.requests_per_second": floatKey(func(s *domain.AppSettings) *float64 { return &s.Invocation.RequestsPerSecond }),
	"invocation.breaker_failures":    intKey(func(s *domain.AppSettings) *int { return &s.Invocation.BreakerFailures }),

	"storage.backend": enumKey(func(s *domain.AppSettings) *domain.StorageBackend { return &s.Storage.Backend }, nil),
	"storage.dsn":     secretKey(func(s *domain.AppSettings) *string { return &s.Storage.DSN }),
}

// parse converts command-line text to the key's kind.
func (k settingKey) parse(value string) (any, error) {
	switch k.kind {
	case kindInt:
		return strconv.Atoi(value)
	case kindFloat:
		return strconv.ParseFloat(value, 64)
	case kindBool:
		return strconv.ParseBool(value)
	default:
		return value, nil
	}
}
