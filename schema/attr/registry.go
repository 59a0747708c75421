package attr

import "fmt"

// Registry is a read-only ordered collection of attribute descriptors,
// queryable by qualified key and filterable by schema. It is immutable
// after construction and safe to share across concurrent requests.
type Registry struct {
	attrs []*Attribute
	byKey map[Key]*Attribute
}

// NewRegistry validates the descriptors and returns a registry over them.
// Validation fails fast: a broken descriptor is a startup error, never a
// request-time one.
func NewRegistry(attrs ...*Attribute) (*Registry, error) {
	r := &Registry{
		attrs: make([]*Attribute, 0, len(attrs)),
		byKey: make(map[Key]*Attribute, len(attrs)),
	}
	for _, a := range attrs {
		if !a.Key.Valid() {
			return nil, NewInvalidAttributeError(a.Key, "key must be qualified as namespace/name")
		}
		if _, ok := r.byKey[a.Key]; ok {
			return nil, NewInvalidAttributeError(a.Key, "duplicate key")
		}
		if !a.Type.Valid() {
			return nil, NewInvalidAttributeError(a.Key, "unknown domain type")
		}
		switch {
		case a.IsRef() && a.Cardinality == CardScalar:
			return nil, NewInvalidAttributeError(a.Key, "reference cardinality must be one or many")
		case !a.IsRef() && a.Cardinality != CardScalar:
			return nil, NewInvalidAttributeError(a.Key, fmt.Sprintf("%s attribute cannot have cardinality %s", a.Type, a.Cardinality))
		case a.IsRef() && a.Target == "":
			return nil, NewInvalidAttributeError(a.Key, "reference declares no target")
		}
		if a.Identity {
			if a.Table == "" {
				return nil, NewMissingTableError(a.Key)
			}
			switch a.Type {
			case TypeUUID, TypeInt, TypeLong:
			default:
				return nil, NewInvalidAttributeError(a.Key, fmt.Sprintf("identity type must be uuid, int or long, not %s", a.Type))
			}
		}
		r.attrs = append(r.attrs, a)
		r.byKey[a.Key] = a
	}
	// Cross-attribute checks run after every key is resolvable.
	for _, a := range r.attrs {
		if !a.IsRef() {
			continue
		}
		if _, ok := r.byKey[a.Target]; !ok {
			return nil, NewInvalidAttributeError(a.Key, fmt.Sprintf("target %q is not registered", a.Target))
		}
		if a.Cardinality == CardMany && a.FkAttr == "" {
			return nil, NewMissingFkAttrError(a.Key)
		}
		if a.FkAttr != "" {
			fk, ok := r.byKey[a.FkAttr]
			if !ok {
				return nil, NewInvalidAttributeError(a.Key, fmt.Sprintf("fk-attr %q is not registered", a.FkAttr))
			}
			if fk.Cardinality == CardMany {
				return nil, NewUnsupportedRelationError(a.Key, a.FkAttr)
			}
		}
	}
	return r, nil
}

// Get returns the attribute registered under key.
func (r *Registry) Get(key Key) (*Attribute, error) {
	a, ok := r.byKey[key]
	if !ok {
		return nil, NewUnknownKeyError(key)
	}
	return a, nil
}

// All returns the attributes in registration order. The returned slice must
// not be mutated.
func (r *Registry) All() []*Attribute { return r.attrs }

// Schema returns the attributes belonging to the named schema, in
// registration order.
func (r *Registry) Schema(name string) []*Attribute {
	var out []*Attribute
	for _, a := range r.attrs {
		if a.Schema == name {
			out = append(out, a)
		}
	}
	return out
}

// Schemas returns the distinct schema names in first-appearance order.
func (r *Registry) Schemas() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range r.attrs {
		if _, ok := seen[a.Schema]; !ok {
			seen[a.Schema] = struct{}{}
			out = append(out, a.Schema)
		}
	}
	return out
}

// Identities returns the identity attributes of the named schema.
func (r *Registry) Identities(schema string) []*Attribute {
	var out []*Attribute
	for _, a := range r.attrs {
		if a.Identity && a.Schema == schema {
			out = append(out, a)
		}
	}
	return out
}

// Entity returns the attributes that are columns of the entity identified
// by the given identity key, the identity attribute first.
func (r *Registry) Entity(identity Key) ([]*Attribute, error) {
	id, err := r.Get(identity)
	if err != nil {
		return nil, err
	}
	if !id.Identity {
		return nil, NewInvalidAttributeError(identity, "not an identity attribute")
	}
	out := []*Attribute{id}
	for _, a := range r.attrs {
		if a.Key != identity && a.OwnedBy(identity) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Identity resolves the identity attribute of the entity the given ident
// key addresses. The identity column of a table is always resolved through
// the registry, never inferred from column naming.
func (r *Registry) Identity(key Key) (*Attribute, error) {
	a, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	if !a.Identity {
		return nil, NewInvalidAttributeError(key, "not an identity attribute")
	}
	return a, nil
}

// Target resolves the identity attribute a reference points at.
func (r *Registry) Target(a *Attribute) (*Attribute, error) {
	if !a.IsRef() {
		return nil, NewInvalidAttributeError(a.Key, "not a reference")
	}
	return r.Identity(a.Target)
}
