// Package sqlfilter compiles domain filters into parameterised SQL WHERE
// clauses for the SQL storage adapters.
package sqlfilter

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var metadataKey = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

// Dialect describes how a database spells placeholders and metadata lookups.
type Dialect struct {
	// Placeholder returns the placeholder for the n-th argument, starting at 1.
	Placeholder func(n int) string

	// Metadata returns an expression extracting key from the metadata column.
	// It is nil when the table has no metadata.
	Metadata func(key string) (expr string, arg any)

	// MetadataAsText converts metadata comparison values to strings.
	MetadataAsText bool
}

// SQLite uses ? placeholders and json_extract.
var SQLite = Dialect{
	Placeholder: func(int) string { return "?" },
	Metadata: func(key string) (string, any) {
		return "json_extract(metadata, ?)", "$." + key
	},
}

// Postgres uses $n placeholders and the ->> operator on jsonb paths.
var Postgres = Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Metadata: func(key string) (string, any) {
		return "(metadata #>> ?)", "{" + strings.ReplaceAll(key, ".", ",") + "}"
	},
	MetadataAsText: true,
}

// WithoutMetadata returns d for tables with no metadata column, so unknown
// fields are rejected instead of looked up.
func (d Dialect) WithoutMetadata() Dialect {
	d.Metadata = nil
	return d
}

// Builder accumulates clauses and arguments.
type Builder struct {
	dialect Dialect
	columns map[string]string
	clauses []string
	args    []any
}

// NewBuilder starts a clause. Columns maps filter field names to column
// expressions; other fields are looked up in metadata.
func NewBuilder(d Dialect, columns map[string]string) *Builder {
	return &Builder{dialect: d, columns: columns}
}

// Arg appends an argument and returns its placeholder.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// Where adds a raw clause. Use Arg for its placeholders.
func (b *Builder) Where(clause string) {
	b.clauses = append(b.clauses, clause)
}

// Args returns the accumulated arguments.
func (b *Builder) Args() []any {
	return b.args
}

// Clause returns "WHERE ..." or the empty string.
func (b *Builder) Clause() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.clauses, " AND ")
}

// Filters compiles every filter. Unknown operators, bad metadata keys and
// non-slice IN values are domain.ErrInvalidInput.
func (b *Builder) Filters(filters []domain.Filter) error {
	for _, f := range filters {
		if err := b.filter(f); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) filter(f domain.Filter) error {
	if !f.Op.IsValid() {
		return fmt.Errorf("%w: filter operator %q", domain.ErrInvalidInput, f.Op)
	}

	expr, isMeta, err := b.field(f.Field)
	if err != nil {
		return err
	}

	if f.Op == domain.FilterIn {
		values, ok := toSlice(f.Value)
		if !ok {
			return fmt.Errorf("%w: filter %q: in requires a list", domain.ErrInvalidInput, f.Field)
		}
		if len(values) == 0 {
			b.Where("1 = 0")
			return nil
		}
		phs := make([]string, len(values))
		for i, v := range values {
			phs[i] = b.Arg(b.value(v, isMeta))
		}
		b.Where(fmt.Sprintf("%s IN (%s)", expr, strings.Join(phs, ", ")))
		return nil
	}

	op := string(f.Op)
	if f.Op == domain.FilterNe {
		op = "<>"
	}
	b.Where(fmt.Sprintf("%s %s %s", expr, op, b.Arg(b.value(f.Value, isMeta))))
	return nil
}

// field resolves a filter field, appending the metadata key argument when needed.
func (b *Builder) field(name string) (string, bool, error) {
	if col, ok := b.columns[name]; ok {
		return col, false, nil
	}
	if b.dialect.Metadata == nil {
		return "", false, fmt.Errorf("%w: unknown filter field %q", domain.ErrInvalidInput, name)
	}
	if !metadataKey.MatchString(name) {
		return "", false, fmt.Errorf("%w: bad metadata key %q", domain.ErrInvalidInput, name)
	}
	expr, arg := b.dialect.Metadata(name)
	return strings.Replace(expr, "?", b.Arg(arg), 1), true, nil
}

func (b *Builder) value(v any, isMeta bool) any {
	switch t := v.(type) {
	case bool:
		if isMeta && b.dialect.MetadataAsText {
			return fmt.Sprint(t)
		}
		if t {
			return 1
		}
		return 0
	case time.Time:
		return float64(t.UnixNano()) / 1e9
	}
	if isMeta && b.dialect.MetadataAsText {
		return fmt.Sprint(v)
	}
	return v
}

func toSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
