// Package rowconv compiles a column-to-output-path configuration into one
// reusable row decode function.
//
// The compiled function is built once per query shape and shared across
// concurrent requests; per-row work is a single pass over the configured
// columns with no re-interpretation of the configuration.
package rowconv

import (
	"fmt"

	"github.com/yenda/formsql/schema/attr"
)

// Entity is a sparse attribute map. A key absent from the map means the
// value is unset; the map never holds explicit nils.
type Entity = map[attr.Key]any

// Spec configures the decoding of one source column.
type Spec struct {
	// Column is the source column name in the raw row.
	Column string
	// Path is where the decoded value lands in the entity. A one-segment
	// path is a direct field set; more segments nest, which embeds a
	// to-one reference's fields under the reference key.
	Path []attr.Key
	// Decode transforms the raw SQL value; nil means pass-through. The
	// custom-vs-type-codec precedence is resolved by the caller before
	// compiling.
	Decode func(any) (any, error)
}

// Transformer decodes one raw row into a sparse entity.
type Transformer func(row map[string]any) (Entity, error)

// Compile returns the transformer for the given column configuration.
// Columns absent from a raw row, and columns whose value decodes to nil,
// are omitted from the result.
func Compile(specs []Spec) (Transformer, error) {
	for _, s := range specs {
		if s.Column == "" {
			return nil, fmt.Errorf("rowconv: spec with empty column")
		}
		if len(s.Path) == 0 {
			return nil, fmt.Errorf("rowconv: column %q has no output path", s.Column)
		}
	}
	compiled := make([]Spec, len(specs))
	copy(compiled, specs)
	return func(row map[string]any) (Entity, error) {
		out := make(Entity, len(compiled))
		for i := range compiled {
			s := &compiled[i]
			raw, ok := row[s.Column]
			if !ok || raw == nil {
				continue
			}
			v := raw
			if s.Decode != nil {
				d, err := s.Decode(raw)
				if err != nil {
					return nil, fmt.Errorf("rowconv: decoding column %q: %w", s.Column, err)
				}
				v = d
			}
			if v == nil {
				continue
			}
			put(out, s.Path, v)
		}
		return out, nil
	}, nil
}

// put writes v at path, creating nested entities for the leading segments.
func put(e Entity, path []attr.Key, v any) {
	for _, k := range path[:len(path)-1] {
		next, ok := e[k].(Entity)
		if !ok {
			next = make(Entity)
			e[k] = next
		}
		e = next
	}
	e[path[len(path)-1]] = v
}
