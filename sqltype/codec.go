package sqltype

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yenda/formsql/schema/attr"
)

// Codecs maps a domain type to its value transformers. The map is built
// once, at engine construction; callers supply overrides at that point
// instead of mutating a shared registry.
type Codecs map[attr.Type]attr.Codec

// Resolve returns the codec for an attribute: the attribute's own custom
// transformer pair when present, else the type-based default. The
// precedence is decided here, once per compiled plan, never per value.
func Resolve(a *attr.Attribute, cs Codecs) attr.Codec {
	if a.Codec != nil {
		return *a.Codec
	}
	return cs[a.Type]
}

// Encode transforms a domain value into its SQL representation. Nil is
// preserved as nil without invoking the codec.
func Encode(c attr.Codec, v any) (any, error) {
	if v == nil || c.Encode == nil {
		return v, nil
	}
	return c.Encode(v)
}

// Decode transforms a SQL value into its domain representation. Nil is
// preserved as nil without invoking the codec.
func Decode(c attr.Codec, v any) (any, error) {
	if v == nil || c.Decode == nil {
		return v, nil
	}
	return c.Decode(v)
}

// Merge returns a copy of base with the overrides applied on top.
func Merge(base, overrides Codecs) Codecs {
	out := make(Codecs, len(base)+len(overrides))
	for t, c := range base {
		out[t] = c
	}
	for t, c := range overrides {
		out[t] = c
	}
	return out
}

// Defaults returns the built-in codec set. Password has no decoder on
// purpose: password values are write-only at the type level.
func Defaults() Codecs {
	return Codecs{
		attr.TypeUUID: {
			Decode: decodeUUID,
		},
		attr.TypeString: {
			Decode: decodeText,
		},
		attr.TypeEnum: {
			Encode: encodeSigil,
			Decode: decodeSigil,
		},
		attr.TypeKeyword: {
			Encode: encodeSigil,
			Decode: decodeSigil,
		},
		attr.TypeSymbol: {
			Encode: encodeSymbol,
			Decode: decodeText,
		},
		attr.TypeInstant: {
			Decode: decodeInstant,
		},
		attr.TypeDecimal: {
			Decode: decodeText,
		},
	}
}

func decodeUUID(v any) (any, error) {
	switch v := v.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	case []byte:
		return uuid.Parse(string(v))
	default:
		return nil, fmt.Errorf("sqltype: cannot decode %T as uuid", v)
	}
}

func decodeText(v any) (any, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return nil, fmt.Errorf("sqltype: cannot decode %T as text", v)
	}
}

// Keywords and enums carry a leading sigil in their column representation
// so they round-trip distinguishably from plain strings.
func encodeSigil(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("sqltype: cannot encode %T as keyword", v)
	}
	return ":" + s, nil
}

func decodeSigil(v any) (any, error) {
	d, err := decodeText(v)
	if err != nil {
		return nil, err
	}
	return strings.TrimPrefix(d.(string), ":"), nil
}

func encodeSymbol(v any) (any, error) {
	return fmt.Sprint(v), nil
}

func decodeInstant(v any) (any, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, fmt.Errorf("sqltype: cannot decode %T as instant", v)
	}
	return t.UTC(), nil
}
