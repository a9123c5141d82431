// Package schema validates loosely typed key/value documents against flat,
// declarative field sets.
//
// A Schema is built once per request shape and is safe for concurrent use.
// Apply never mutates the schema or the input; every call returns a fresh
// Validated value with its own Context.
package schema

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Document is a decoded JSON object.
type Document map[string]any

// Context collects per-call facts for logging and metrics. It never feeds
// back into the response payload.
type Context map[string]any

// ContextFunc derives one context value from a validated document.
type ContextFunc func(doc Document, v *Validated) any

type contextRule struct {
	key string
	fn  ContextFunc
}

// Schema is an ordered set of fields plus optional cross-field rules.
type Schema struct {
	name    string
	fields  []Field
	pairs   [][]string
	context []contextRule
	now     func() time.Time
}

// Option configures a Schema at construction time.
type Option func(*Schema)

// WithRequiredPairs demands that at least one group has every member
// present with a non-null raw value.
func WithRequiredPairs(groups ...[]string) Option {
	return func(s *Schema) {
		for _, g := range groups {
			s.pairs = append(s.pairs, slices.Clone(g))
		}
	}
}

// WithContext records fn's result under key in every successful Apply.
func WithContext(key string, fn ContextFunc) Option {
	return func(s *Schema) {
		s.context = append(s.context, contextRule{key: key, fn: fn})
	}
}

// WithClock replaces time.Now for date checks.
func WithClock(now func() time.Time) Option {
	return func(s *Schema) {
		s.now = now
	}
}

// New builds a Schema. Duplicate field names and pair members that are not
// declared fields are programming errors and panic.
func New(name string, fields []Field, opts ...Option) *Schema {
	s := &Schema{
		name:   name,
		fields: slices.Clone(fields),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	seen := make(map[string]struct{}, len(s.fields))
	for _, f := range s.fields {
		if _, dup := seen[f.Name]; dup {
			panic(fmt.Sprintf("schema %s: duplicate field %q", name, f.Name))
		}
		seen[f.Name] = struct{}{}
	}
	for _, g := range s.pairs {
		for _, member := range g {
			if _, ok := seen[member]; !ok {
				panic(fmt.Sprintf("schema %s: pair member %q is not a field", name, member))
			}
		}
	}
	return s
}

func (s *Schema) Name() string { return s.name }

// Apply validates doc. The checks run in a fixed order and the first failure
// wins:
//  1. required pairs, judged on raw presence (a null member does not count);
//  2. presence of every required field, in declaration order;
//  3. Clean of every present field, in declaration order.
//
// Keys the schema does not declare are ignored.
func (s *Schema) Apply(doc Document) (*Validated, error) {
	if len(s.pairs) > 0 && !s.pairSatisfied(doc) {
		return nil, errNoPair()
	}

	for _, f := range s.fields {
		if !f.Required {
			continue
		}
		if _, ok := doc[f.Name]; !ok {
			return nil, errRequired(f.Name)
		}
	}

	now := s.now()
	v := &Validated{
		values:  make(map[string]any, len(s.fields)),
		Context: Context{},
	}
	for _, f := range s.fields {
		raw, ok := doc[f.Name]
		if !ok {
			continue
		}
		value, err := f.Clean(raw, now)
		if err != nil {
			return nil, err
		}
		v.values[f.Name] = value
	}

	for _, rule := range s.context {
		v.Context[rule.key] = rule.fn(doc, v)
	}
	return v, nil
}

func (s *Schema) pairSatisfied(doc Document) bool {
	for _, group := range s.pairs {
		complete := true
		for _, member := range group {
			if raw, ok := doc[member]; !ok || raw == nil {
				complete = false
				break
			}
		}
		if complete {
			return true
		}
	}
	return false
}

// SuppliedKeys lists, sorted, every key of doc whose raw value is not null.
func SuppliedKeys(doc Document, _ *Validated) any {
	keys := make([]string, 0, len(doc))
	for k, v := range doc {
		if v != nil {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Validated holds the cleaned values of one Apply call.
type Validated struct {
	values  map[string]any
	Context Context
}

// Present reports whether the field was supplied, even if empty.
func (v *Validated) Present(name string) bool {
	_, ok := v.values[name]
	return ok
}

// Has reports whether the field was supplied with a non-empty value.
func (v *Validated) Has(name string) bool {
	return v.values[name] != nil
}

// Value returns the cleaned value or nil.
func (v *Validated) Value(name string) any {
	return v.values[name]
}

// Values returns a copy of all cleaned values keyed by field name.
func (v *Validated) Values() map[string]any {
	return maps.Clone(v.values)
}

func (v *Validated) String(name string) string {
	s, _ := v.values[name].(string)
	return s
}

func (v *Validated) Document(name string) Document {
	d, _ := v.values[name].(Document)
	return d
}

func (v *Validated) Time(name string) (time.Time, bool) {
	t, ok := v.values[name].(time.Time)
	return t, ok
}

func (v *Validated) Int(name string) (int, bool) {
	n, ok := v.values[name].(int)
	return n, ok
}

func (v *Validated) Ints(name string) []int64 {
	ids, _ := v.values[name].([]int64)
	return ids
}
