package sqlite

import (
	"database/sql/driver"
	"fmt"

	msqlite "modernc.org/sqlite"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/scoring"
)

// Scalar functions evaluated inside SQLite so scoring is pushed into the query.
//
//	recall_cosine(a BLOB, b BLOB)        cosine similarity
//	recall_dot(a BLOB, b BLOB)           inner product
//	recall_neg_l2(a BLOB, b BLOB)        negated Euclidean distance
//	recall_relevance(metric TEXT, sim)   similarity rescaled into [0, 1]
//	recall_recency(elapsed, half_life)   0.5^(elapsed/half_life)
//	recall_importance(imp, max)          imp/max clamped into [0, 1]
//	recall_composite(w_rec, w_imp, w_rel, rec, imp, rel)
func init() {
	vectorFuncs := map[string]func(a, b []float32) float64{
		"recall_cosine": scoring.Cosine,
		"recall_dot":    scoring.Dot,
		"recall_neg_l2": scoring.NegL2,
	}
	for name, fn := range vectorFuncs {
		mustRegister(name, 2, func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			a, aok := args[0].([]byte)
			b, bok := args[1].([]byte)
			if !aok || !bok {
				return nil, nil
			}
			return fn(decodeVector(a), decodeVector(b)), nil
		})
	}

	mustRegister("recall_relevance", 2, func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		metric, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("recall_relevance: metric must be text")
		}
		sim, ok := toFloat(args[1])
		if !ok {
			return nil, nil
		}
		return scoring.Relevance(domain.Metric(metric), sim), nil
	})

	mustRegister("recall_recency", 2, func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		elapsed, eok := toFloat(args[0])
		halfLife, hok := toFloat(args[1])
		if !eok || !hok {
			return nil, nil
		}
		return scoring.Recency(elapsed, halfLife), nil
	})

	mustRegister("recall_importance", 2, func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		imp, iok := toFloat(args[0])
		maxImp, mok := toFloat(args[1])
		if !iok || !mok {
			return nil, nil
		}
		return scoring.Importance(imp, maxImp), nil
	})

	mustRegister("recall_composite", 6, func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		var v [6]float64
		for i := range v {
			f, ok := toFloat(args[i])
			if !ok {
				return nil, nil
			}
			v[i] = f
		}
		spec := domain.CompositeSpec{WeightRecency: v[0], WeightImportance: v[1], WeightRelevance: v[2]}
		return scoring.Composite(spec, v[5], v[3], v[4]), nil
	})
}

func mustRegister(name string, nArgs int32, fn func(*msqlite.FunctionContext, []driver.Value) (driver.Value, error)) {
	if err := msqlite.RegisterDeterministicScalarFunction(name, nArgs, fn); err != nil {
		panic(fmt.Sprintf("registering %s: %v", name, err))
	}
}

// similarityFunc returns the SQL function name for a metric.
func similarityFunc(m domain.Metric) (string, error) {
	switch m {
	case domain.MetricCosine:
		return "recall_cosine", nil
	case domain.MetricInnerProduct:
		return "recall_dot", nil
	case domain.MetricEuclidean:
		return "recall_neg_l2", nil
	default:
		return "", fmt.Errorf("%w: metric %q", domain.ErrUnsupportedType, m)
	}
}

func toFloat(v driver.Value) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
