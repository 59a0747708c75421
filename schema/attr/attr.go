// Package attr describes entity attributes and their database mapping.
//
// An Attribute is an immutable descriptor keyed by a qualified key such as
// "account/name". Attributes are collected into a Registry, which validates
// the descriptor invariants once at construction and is read-only afterwards.
package attr

import "strings"

// Type is the domain type of an attribute value.
type Type uint8

// Domain types. The set is closed; anything else is a modeling error.
const (
	TypeInvalid Type = iota
	TypeUUID
	TypeInt
	TypeLong
	TypeString
	TypePassword
	TypeBool
	TypeDecimal
	TypeInstant
	TypeEnum
	TypeKeyword
	TypeSymbol
	TypeRef
)

var typeNames = [...]string{
	TypeInvalid:  "invalid",
	TypeUUID:     "uuid",
	TypeInt:      "int",
	TypeLong:     "long",
	TypeString:   "string",
	TypePassword: "password",
	TypeBool:     "boolean",
	TypeDecimal:  "decimal",
	TypeInstant:  "instant",
	TypeEnum:     "enum",
	TypeKeyword:  "keyword",
	TypeSymbol:   "symbol",
	TypeRef:      "ref",
}

// String returns the lowercase name of the type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "invalid"
}

// Valid reports if the type is a member of the closed domain-type set.
func (t Type) Valid() bool {
	return t > TypeInvalid && t <= TypeRef
}

// Numeric reports if the type is backed by an integer column, meaning a
// tempid for an identity of this type is allocated from a sequence.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeLong
}

// Cardinality describes how many values an attribute holds. Only ref
// attributes may be CardOne or CardMany.
type Cardinality uint8

const (
	CardScalar Cardinality = iota
	CardOne
	CardMany
)

// String returns the lowercase name of the cardinality.
func (c Cardinality) String() string {
	switch c {
	case CardOne:
		return "one"
	case CardMany:
		return "many"
	default:
		return "scalar"
	}
}

// Key is a globally unique qualified attribute key of the form
// "namespace/name".
type Key string

// Namespace returns the part of the key before the slash.
func (k Key) Namespace() string {
	if i := strings.IndexByte(string(k), '/'); i >= 0 {
		return string(k[:i])
	}
	return ""
}

// Name returns the part of the key after the slash, or the whole key if it
// is unqualified.
func (k Key) Name() string {
	if i := strings.IndexByte(string(k), '/'); i >= 0 {
		return string(k[i+1:])
	}
	return string(k)
}

// Valid reports if the key is qualified and both parts are non-empty.
func (k Key) Valid() bool {
	i := strings.IndexByte(string(k), '/')
	return i > 0 && i < len(k)-1
}

// Codec is a pair of pure value transformers between domain values and SQL
// values. A nil function means pass-through. Codecs never see nil values;
// the caller preserves nil/SQL-NULL without invoking them.
type Codec struct {
	Encode func(v any) (any, error)
	Decode func(v any) (any, error)
}

// Attribute is the immutable descriptor of one entity attribute.
type Attribute struct {
	// Key is the globally unique qualified key.
	Key Key
	// Type is the domain type.
	Type Type
	// Cardinality is CardScalar for non-refs, CardOne or CardMany for refs.
	Cardinality Cardinality
	// Identity marks the attribute as the identity of its entity.
	Identity bool
	// Identities lists the identity keys of the entities this attribute is
	// a column of. Identity attributes list themselves.
	Identities []Key
	// Schema is the logical database the entity's table lives in.
	Schema string
	// Target is the identity key of the referenced entity (refs only).
	Target Key
	// Table is the table name. Required on identity attributes; it is
	// never inferred from the key's namespace.
	Table string
	// Column overrides the derived column name.
	Column string
	// MaxLen bounds string and enum values (0 = unbounded).
	MaxLen int
	// FkAttr names the attribute on the target entity holding the foreign
	// key column. Absent means this entity's table holds the column.
	FkAttr Key
	// DeleteOrphan deletes (rather than unlinks) a referenced entity when
	// the reference to it is removed. Deletion is not cascaded to the
	// orphan's own children; that is a schema concern (ON DELETE CASCADE).
	DeleteOrphan bool
	// OrderBy sorts a to-many collection by the named target attribute,
	// ascending with nulls last.
	OrderBy Key
	// Codec overrides the type-based value transformers.
	Codec *Codec
}

// IsRef reports if the attribute is a reference.
func (a *Attribute) IsRef() bool { return a.Type == TypeRef }

// OwnedBy reports if the attribute is a column of the entity identified by
// the given identity key.
func (a *Attribute) OwnedBy(identity Key) bool {
	for _, k := range a.Identities {
		if k == identity {
			return true
		}
	}
	return false
}
