package store

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Op is a filter comparison.
type Op string

const (
	// Eq matches when any value at the path equals the filter value.
	Eq Op = "eq"
	// Contains matches when a sequence at the path contains the filter value.
	Contains Op = "contains"
	// Prefix matches when a string at the path starts with the filter value.
	Prefix Op = "prefix"
)

// Filter restricts a query. Path is a JSONPath over the document fields;
// a bare name such as "userId" means "$.userId".
type Filter struct {
	Path  string
	Op    Op
	Value any
}

// Where is shorthand for an Eq filter.
func Where(path string, value any) Filter {
	return Filter{Path: path, Op: Eq, Value: value}
}

// normalizePath turns bare field names into JSONPath expressions.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "$"):
		return path
	case strings.HasPrefix(path, "["):
		return "$" + path
	default:
		return "$." + path
	}
}

// Compile parses the filter path ahead of evaluation.
func (f Filter) Compile() (CompiledFilter, error) {
	x, err := jp.ParseString(normalizePath(f.Path))
	if err != nil {
		return CompiledFilter{}, fmt.Errorf("invalid filter path %q: %w", f.Path, err)
	}
	switch f.Op {
	case Eq, Contains, Prefix:
	case "":
		f.Op = Eq
	default:
		return CompiledFilter{}, fmt.Errorf("unknown filter op %q", f.Op)
	}
	return CompiledFilter{Filter: f, expr: x}, nil
}

// CompiledFilter is a Filter with a parsed path.
type CompiledFilter struct {
	Filter
	expr jp.Expr
}

// Match reports whether fields satisfy the filter.
func (c CompiledFilter) Match(fields map[string]any) bool {
	for _, got := range c.expr.Get(fields) {
		switch c.Op {
		case Eq:
			if valuesEqual(got, c.Value) {
				return true
			}
		case Contains:
			if seq, ok := got.([]any); ok {
				for _, item := range seq {
					if valuesEqual(item, c.Value) {
						return true
					}
				}
			}
		case Prefix:
			s, ok := got.(string)
			p, pok := c.Value.(string)
			if ok && pok && strings.HasPrefix(s, p) {
				return true
			}
		}
	}
	return false
}

// CompileFilters compiles every filter, failing on the first bad one.
func CompileFilters(filters []Filter) ([]CompiledFilter, error) {
	compiled := make([]CompiledFilter, 0, len(filters))
	for _, f := range filters {
		c, err := f.Compile()
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}

// Match reports whether fields satisfy all compiled filters.
func Match(fields map[string]any, filters []CompiledFilter) bool {
	for _, f := range filters {
		if !f.Match(fields) {
			return false
		}
	}
	return true
}

// valuesEqual compares JSON values, treating all numeric types as float64.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if reflect.DeepEqual(actual, expected) {
		return true
	}
	a, aok := toFloat64(actual)
	e, eok := toFloat64(expected)
	return aok && eok && a == e
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}
