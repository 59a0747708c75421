// Package sqltype derives table and column names from attribute
// descriptors and maps domain values to and from their SQL representation.
//
// Name derivation and codec precedence are resolved once, when resolvers
// and write plans are compiled; nothing in this package is re-decided per
// row or per value.
package sqltype

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/yenda/formsql/schema/attr"
)

// MissingColumnError reports an attribute whose column name is neither
// declared nor derivable.
type MissingColumnError struct {
	Key attr.Key
}

// Error returns the error string.
func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("sqltype: no column derivable for attribute %q", e.Key)
}

// NewMissingColumnError returns a new MissingColumnError.
func NewMissingColumnError(key attr.Key) *MissingColumnError {
	return &MissingColumnError{Key: key}
}

// IsMissingColumn returns true if the error is a MissingColumnError.
func IsMissingColumn(err error) bool {
	if err == nil {
		return false
	}
	var e *MissingColumnError
	return errors.As(err, &e)
}

// Column returns the column identifier of the attribute: the explicit
// override when declared, else the snake_case of the key's local name.
func Column(a *attr.Attribute) (string, error) {
	if a.Column != "" {
		return a.Column, nil
	}
	name := strings.ReplaceAll(a.Key.Name(), "-", "_")
	col := inflect.Underscore(name)
	if col == "" {
		return "", NewMissingColumnError(a.Key)
	}
	return col, nil
}

// Table returns the table name of a table-owning (identity) attribute, or
// the empty string for any other attribute.
func Table(a *attr.Attribute) string {
	if !a.Identity {
		return ""
	}
	return a.Table
}

// Sequence returns the name of the allocation sequence backing an integer
// identity attribute.
func Sequence(a *attr.Attribute) string {
	return a.Table + "_id_seq"
}

// ArrayType maps a domain type to the PostgreSQL array type literal used in
// "= ANY($1::T[])" batch predicates. One literal query shape per attribute
// type keeps the prepared-statement cache hit rate at 100% regardless of
// batch size, at the cost of an explicit (if conservative) cast.
func ArrayType(t attr.Type) string {
	switch t {
	case attr.TypeUUID:
		return "uuid[]"
	case attr.TypeInt:
		return "int4[]"
	case attr.TypeLong:
		return "int8[]"
	case attr.TypeBool:
		return "boolean[]"
	case attr.TypeDecimal:
		return "numeric[]"
	case attr.TypeInstant:
		return "timestamptz[]"
	default:
		return "text[]"
	}
}
