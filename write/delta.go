// Package write compiles entity deltas into ordered SQL plans.
//
// A write call runs a fixed pipeline over one delta: reference-graph
// rewrite, tempid planning, tempid substitution, per-schema SQL plan
// compilation, and execution through pgexec. Each call builds a fresh plan
// from its own delta; there is no cross-request shared mutable state.
package write

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/yenda/formsql/rowconv"
	"github.com/yenda/formsql/schema/attr"
)

// TempID is an opaque placeholder for an entity not yet assigned a real
// id. It carries no meaning beyond uniqueness within a single delta.
type TempID string

// NewTempID returns a fresh tempid.
func NewTempID() TempID {
	return TempID(uuid.NewString())
}

// Ident addresses one entity instance: an identity attribute key paired
// with an id value. The id is a uuid.UUID, an int64, or a TempID.
type Ident struct {
	Attr attr.Key
	ID   any
}

// NewIdent returns the ident for the given identity key and id value.
func NewIdent(key attr.Key, id any) Ident {
	return Ident{Attr: key, ID: normalizeID(id)}
}

// IsTemp reports if the ident's id is a tempid.
func (i Ident) IsTemp() bool {
	_, ok := i.ID.(TempID)
	return ok
}

func (i Ident) String() string {
	return fmt.Sprintf("[%s %v]", i.Attr, i.ID)
}

// Ref is the normalized form of a reference value. Reference values arrive
// in several shapes (raw scalar id, ident pair, embedded map); they are
// normalized once at the delta boundary and handled uniformly afterwards.
type Ref struct {
	Ident Ident
	// Fields holds the embedded target fields when the value arrived as a
	// nested map; nil otherwise.
	Fields rowconv.Entity
}

// NormalizeRef converts a reference value into its tagged form. The target
// key names the identity attribute of the referenced entity.
func NormalizeRef(v any, target attr.Key) (Ref, error) {
	switch v := v.(type) {
	case Ref:
		return v, nil
	case Ident:
		return Ref{Ident: v}, nil
	case rowconv.Entity:
		id, ok := v[target]
		if !ok {
			return Ref{}, fmt.Errorf("write: embedded reference lacks identity %q", target)
		}
		fields := make(rowconv.Entity, len(v))
		for k, fv := range v {
			fields[k] = fv
		}
		return Ref{Ident: NewIdent(target, id), Fields: fields}, nil
	case uuid.UUID, int, int32, int64, TempID, string:
		return Ref{Ident: NewIdent(target, v)}, nil
	default:
		return Ref{}, fmt.Errorf("write: cannot normalize %T as a reference to %q", v, target)
	}
}

// NormalizeRefs converts a to-many reference value into tagged form.
func NormalizeRefs(v any, target attr.Key) ([]Ref, error) {
	if v == nil {
		return nil, nil
	}
	var items []any
	switch v := v.(type) {
	case []Ref:
		return v, nil
	case []Ident:
		items = make([]any, len(v))
		for i, id := range v {
			items[i] = id
		}
	case []any:
		items = v
	default:
		return nil, fmt.Errorf("write: cannot normalize %T as a reference collection", v)
	}
	out := make([]Ref, 0, len(items))
	for _, item := range items {
		ref, err := NormalizeRef(item, target)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// normalizeID widens integer ids to int64 so idents compare consistently.
func normalizeID(id any) any {
	switch id := id.(type) {
	case int:
		return int64(id)
	case int32:
		return int64(id)
	default:
		return id
	}
}

// Change is a field-level before/after pair. For reference attributes the
// values are reference values (nil, one, or a collection).
type Change struct {
	Before any
	After  any
}

// EntityDelta is the set of changes to one entity. A deletion marker
// stands alone; field changes on a deleted entity are kept only for
// traceability and never compiled.
type EntityDelta struct {
	Delete bool
	Fields map[attr.Key]Change
}

// Delta maps idents to their changes: the unit of one write call.
type Delta map[Ident]*EntityDelta

// clone copies the delta one level deep, so the rewrite can add entries
// without mutating the caller's value.
func (d Delta) clone() Delta {
	out := make(Delta, len(d))
	for ident, ed := range d {
		fields := make(map[attr.Key]Change, len(ed.Fields))
		for k, ch := range ed.Fields {
			fields[k] = ch
		}
		out[ident] = &EntityDelta{Delete: ed.Delete, Fields: fields}
	}
	return out
}

// ensure returns the entity delta for ident, adding an empty one if absent.
func (d Delta) ensure(ident Ident) *EntityDelta {
	ed, ok := d[ident]
	if !ok {
		ed = &EntityDelta{Fields: make(map[attr.Key]Change)}
		d[ident] = ed
	}
	if ed.Fields == nil {
		ed.Fields = make(map[attr.Key]Change)
	}
	return ed
}
