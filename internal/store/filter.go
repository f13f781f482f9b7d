package store

import (
	"fmt"
	"strings"

	errs "github.com/manual-sih/sihmcp/internal/errors"
)

// unsupportedCondition builds a filter error matchable against
// ErrFilterUnsupported via errors.Is.
func unsupportedCondition(cond Condition) error {
	return errs.New(errs.ErrCodeFilterUnsupported,
		fmt.Sprintf("unsupported filter condition %s=%v", cond.Key, cond.Value), nil)
}

// Filter keys evaluated by the indexes.
const (
	FilterKeyAno  = "ano"
	FilterKeyTipo = "tipo"
)

// Condition is a single equality predicate on chunk metadata.
type Condition struct {
	Key   string
	Value any
}

// Filter restricts search results by chunk metadata. Conditions conjoin:
// a chunk matches only when every condition holds.
type Filter struct {
	conditions []Condition
}

// NewFilter creates an empty filter.
func NewFilter() *Filter {
	return &Filter{}
}

// WithAno adds a publication-year predicate.
func (f *Filter) WithAno(year int) *Filter {
	f.conditions = append(f.conditions, Condition{Key: FilterKeyAno, Value: year})
	return f
}

// WithTipo adds a document-type predicate.
func (f *Filter) WithTipo(tipo string) *Filter {
	f.conditions = append(f.conditions, Condition{Key: FilterKeyTipo, Value: tipo})
	return f
}

// With adds an arbitrary equality predicate. Keys beyond "ano" and "tipo"
// fail Validate, which the pipeline turns into a retry without the filter.
func (f *Filter) With(key string, value any) *Filter {
	f.conditions = append(f.conditions, Condition{Key: key, Value: value})
	return f
}

// Conditions returns the predicates in insertion order.
func (f *Filter) Conditions() []Condition {
	if f == nil {
		return nil
	}
	return f.conditions
}

// Empty reports whether the filter has no conditions.
func (f *Filter) Empty() bool {
	return f == nil || len(f.conditions) == 0
}

// Validate checks every condition references a known metadata key with the
// expected value type. Returns ErrFilterUnsupported otherwise.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	for _, cond := range f.conditions {
		switch cond.Key {
		case FilterKeyAno:
			if _, ok := cond.Value.(int); !ok {
				return unsupportedCondition(cond)
			}
		case FilterKeyTipo:
			if _, ok := cond.Value.(string); !ok {
				return unsupportedCondition(cond)
			}
		default:
			return unsupportedCondition(cond)
		}
	}
	return nil
}

// Match reports whether the metadata satisfies every condition.
// Unknown keys never match; callers should Validate first.
func (f *Filter) Match(meta ChunkMeta) bool {
	if f == nil {
		return true
	}
	for _, cond := range f.conditions {
		switch cond.Key {
		case FilterKeyAno:
			year, ok := cond.Value.(int)
			if !ok || meta.Ano != year {
				return false
			}
		case FilterKeyTipo:
			tipo, ok := cond.Value.(string)
			if !ok || meta.Tipo != tipo {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// String renders the filter for logging.
func (f *Filter) String() string {
	if f.Empty() {
		return "{}"
	}
	parts := make([]string, 0, len(f.conditions))
	for _, cond := range f.conditions {
		parts = append(parts, fmt.Sprintf("%s=%v", cond.Key, cond.Value))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
