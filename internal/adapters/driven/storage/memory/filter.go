package memory

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// fieldFunc resolves a filter field against one entity. ok is false when the
// entity has no such field.
type fieldFunc func(field string) (value any, ok bool)

// matchFilters reports whether every filter holds. A filter naming an absent
// field does not match.
func matchFilters(filters []domain.Filter, lookup fieldFunc) (bool, error) {
	for _, f := range filters {
		if !f.Op.IsValid() {
			return false, fmt.Errorf("%w: filter operator %q", domain.ErrInvalidInput, f.Op)
		}
		got, ok := lookup(f.Field)
		if !ok {
			return false, nil
		}
		match, err := compare(got, f.Op, f.Value)
		if err != nil {
			return false, fmt.Errorf("filter %q: %w", f.Field, err)
		}
		if !match {
			return false, nil
		}
	}
	return true, nil
}

func compare(got any, op domain.FilterOp, want any) (bool, error) {
	if op == domain.FilterIn {
		rv := reflect.ValueOf(want)
		if want == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return false, fmt.Errorf("%w: in requires a list", domain.ErrInvalidInput)
		}
		for i := 0; i < rv.Len(); i++ {
			if cmpValues(got, rv.Index(i).Interface()) == 0 {
				return true, nil
			}
		}
		return false, nil
	}

	c := cmpValues(got, want)
	switch op {
	case domain.FilterEq:
		return c == 0, nil
	case domain.FilterNe:
		return c != 0, nil
	case domain.FilterLt:
		return c < 0, nil
	case domain.FilterLte:
		return c <= 0, nil
	case domain.FilterGt:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

// cmpValues orders numbers numerically and everything else by its text form,
// the way the SQL adapters compare columns and metadata.
func cmpValues(a, b any) int {
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case time.Time:
		return float64(t.UnixNano()) / 1e9, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// metadataValue walks a dotted key through nested metadata maps.
func metadataValue(meta map[string]any, key string) (any, bool) {
	var cur any = meta
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
