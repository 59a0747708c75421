package attr

// Builder is a fluent constructor for an Attribute descriptor. Builders do
// not validate; NewRegistry validates every descriptor it receives.
type Builder struct {
	a Attribute
}

func newBuilder(key string, t Type) *Builder {
	return &Builder{a: Attribute{Key: Key(key), Type: t}}
}

// UUID returns a uuid attribute builder.
func UUID(key string) *Builder { return newBuilder(key, TypeUUID) }

// Int returns an int attribute builder.
func Int(key string) *Builder { return newBuilder(key, TypeInt) }

// Long returns a long attribute builder.
func Long(key string) *Builder { return newBuilder(key, TypeLong) }

// String returns a string attribute builder.
func String(key string) *Builder { return newBuilder(key, TypeString) }

// Password returns a password attribute builder. Password values are
// write-only: the engine never selects them back.
func Password(key string) *Builder { return newBuilder(key, TypePassword) }

// Bool returns a boolean attribute builder.
func Bool(key string) *Builder { return newBuilder(key, TypeBool) }

// Decimal returns a decimal attribute builder.
func Decimal(key string) *Builder { return newBuilder(key, TypeDecimal) }

// Instant returns an instant attribute builder.
func Instant(key string) *Builder { return newBuilder(key, TypeInstant) }

// Enum returns an enum attribute builder.
func Enum(key string) *Builder { return newBuilder(key, TypeEnum) }

// Keyword returns a keyword attribute builder.
func Keyword(key string) *Builder { return newBuilder(key, TypeKeyword) }

// Symbol returns a symbol attribute builder.
func Symbol(key string) *Builder { return newBuilder(key, TypeSymbol) }

// Ref returns a to-one reference builder targeting the given identity key.
func Ref(key, target string) *Builder {
	b := newBuilder(key, TypeRef)
	b.a.Cardinality = CardOne
	b.a.Target = Key(target)
	return b
}

// Identity marks the attribute as its entity's identity and declares the
// table explicitly. Tables are never derived from the key's namespace.
func (b *Builder) Identity(table string) *Builder {
	b.a.Identity = true
	b.a.Table = table
	b.a.Identities = append(b.a.Identities, b.a.Key)
	return b
}

// Of declares which entities the attribute is a column of.
func (b *Builder) Of(identities ...string) *Builder {
	for _, k := range identities {
		b.a.Identities = append(b.a.Identities, Key(k))
	}
	return b
}

// Schema sets the logical database name.
func (b *Builder) Schema(name string) *Builder {
	b.a.Schema = name
	return b
}

// Column overrides the derived column name.
func (b *Builder) Column(name string) *Builder {
	b.a.Column = name
	return b
}

// MaxLen bounds string and enum values.
func (b *Builder) MaxLen(n int) *Builder {
	b.a.MaxLen = n
	return b
}

// Many makes the reference to-many. A to-many reference is always reverse:
// fkAttr names the attribute on the target entity holding the foreign key.
func (b *Builder) Many(fkAttr string) *Builder {
	b.a.Cardinality = CardMany
	b.a.FkAttr = Key(fkAttr)
	return b
}

// FkAttr makes a to-one reference reverse: the target entity's table holds
// the foreign key column named by the given attribute.
func (b *Builder) FkAttr(key string) *Builder {
	b.a.FkAttr = Key(key)
	return b
}

// DeleteOrphan deletes the referenced entity when the reference is removed.
func (b *Builder) DeleteOrphan() *Builder {
	b.a.DeleteOrphan = true
	return b
}

// OrderBy sorts the to-many collection by the named target attribute.
func (b *Builder) OrderBy(key string) *Builder {
	b.a.OrderBy = Key(key)
	return b
}

// Transform installs a custom encode/decode pair taking precedence over the
// type-based codec.
func (b *Builder) Transform(encode, decode func(any) (any, error)) *Builder {
	b.a.Codec = &Codec{Encode: encode, Decode: decode}
	return b
}

// Descriptor returns the built attribute.
func (b *Builder) Descriptor() *Attribute {
	a := b.a
	return &a
}
