package scope

import (
	"errors"
	"fmt"
	"strings"
)

// FieldNotFoundError is returned when no table in scope can supply an unbound
// field.
type FieldNotFoundError struct {
	// Field is the unresolved reference as table.column.
	Field string

	// Tables lists every table in scope, innermost level first.
	Tables []string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %s not found among selected tables {%s}",
		e.Field, strings.Join(e.Tables, ","))
}

// AmbiguousFieldError is returned when more than one auto-aliased table
// instance can supply an unbound field.
type AmbiguousFieldError struct {
	Field string

	// Tables lists the conflicting instances as "schema.table alias".
	Tables []string
}

func (e *AmbiguousFieldError) Error() string {
	return fmt.Sprintf("field %s is ambiguous over the tables {%s}",
		e.Field, strings.Join(e.Tables, ","))
}

// IsFieldNotFound reports whether err wraps a FieldNotFoundError.
func IsFieldNotFound(err error) bool {
	var fe *FieldNotFoundError
	return errors.As(err, &fe)
}

// IsAmbiguousField reports whether err wraps an AmbiguousFieldError.
func IsAmbiguousField(err error) bool {
	var ae *AmbiguousFieldError
	return errors.As(err, &ae)
}
