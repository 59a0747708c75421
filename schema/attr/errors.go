package attr

import (
	"errors"
	"fmt"
)

// InvalidAttributeError reports a descriptor that violates a registry
// invariant. It fails registry construction, never a request.
type InvalidAttributeError struct {
	Key    Key
	Reason string
}

// Error returns the error string.
func (e *InvalidAttributeError) Error() string {
	return fmt.Sprintf("attr: invalid attribute %q: %s", e.Key, e.Reason)
}

// NewInvalidAttributeError returns a new InvalidAttributeError.
func NewInvalidAttributeError(key Key, reason string) *InvalidAttributeError {
	return &InvalidAttributeError{Key: key, Reason: reason}
}

// IsInvalidAttribute returns true if the error is an InvalidAttributeError.
func IsInvalidAttribute(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidAttributeError
	return errors.As(err, &e)
}

// MissingTableError reports an identity attribute with no explicit table.
type MissingTableError struct {
	Key Key
}

// Error returns the error string.
func (e *MissingTableError) Error() string {
	return fmt.Sprintf("attr: identity attribute %q declares no table", e.Key)
}

// NewMissingTableError returns a new MissingTableError.
func NewMissingTableError(key Key) *MissingTableError {
	return &MissingTableError{Key: key}
}

// IsMissingTable returns true if the error is a MissingTableError.
func IsMissingTable(err error) bool {
	if err == nil {
		return false
	}
	var e *MissingTableError
	return errors.As(err, &e)
}

// MissingFkAttrError reports a to-many reference with no fk-attr. A forward
// to-many reference is a modeling error: the foreign key of a one-to-many
// relation always lives on the target table.
type MissingFkAttrError struct {
	Key Key
}

// Error returns the error string.
func (e *MissingFkAttrError) Error() string {
	return fmt.Sprintf("attr: to-many reference %q declares no fk-attr", e.Key)
}

// NewMissingFkAttrError returns a new MissingFkAttrError.
func NewMissingFkAttrError(key Key) *MissingFkAttrError {
	return &MissingFkAttrError{Key: key}
}

// IsMissingFkAttr returns true if the error is a MissingFkAttrError.
func IsMissingFkAttr(err error) bool {
	if err == nil {
		return false
	}
	var e *MissingFkAttrError
	return errors.As(err, &e)
}

// UnsupportedRelationError reports a reference whose fk-attr is itself
// to-many, i.e. a many-to-many relation through a direct foreign key.
// Many-to-many must be modeled through a join entity.
type UnsupportedRelationError struct {
	Key    Key
	FkAttr Key
}

// Error returns the error string.
func (e *UnsupportedRelationError) Error() string {
	return fmt.Sprintf("attr: reference %q: fk-attr %q is itself to-many; model the relation through a join entity", e.Key, e.FkAttr)
}

// NewUnsupportedRelationError returns a new UnsupportedRelationError.
func NewUnsupportedRelationError(key, fkAttr Key) *UnsupportedRelationError {
	return &UnsupportedRelationError{Key: key, FkAttr: fkAttr}
}

// IsUnsupportedRelation returns true if the error is an UnsupportedRelationError.
func IsUnsupportedRelation(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedRelationError
	return errors.As(err, &e)
}

// UnknownKeyError reports a lookup of a key the registry does not hold.
type UnknownKeyError struct {
	Key Key
}

// Error returns the error string.
func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("attr: unknown attribute key %q", e.Key)
}

// NewUnknownKeyError returns a new UnknownKeyError.
func NewUnknownKeyError(key Key) *UnknownKeyError {
	return &UnknownKeyError{Key: key}
}

// IsUnknownKey returns true if the error is an UnknownKeyError.
func IsUnknownKey(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownKeyError
	return errors.As(err, &e)
}
