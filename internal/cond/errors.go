package cond

import (
	"errors"
	"fmt"
	"strings"
)

// UnsupportedInMemoryOperationError is returned by the evaluator for
// conditions or comparators that have no in-memory meaning.
type UnsupportedInMemoryOperationError struct {
	// Op is the condition kind or comparator that was rejected.
	Op string

	// Reason explains the rejection.
	Reason string
}

func (e *UnsupportedInMemoryOperationError) Error() string {
	return fmt.Sprintf("unsupported for in-memory evaluation: %s: %s", e.Op, e.Reason)
}

func unrecognizedOp(op string) error {
	return &UnsupportedInMemoryOperationError{
		Op:     op,
		Reason: fmt.Sprintf("unknown comparison function %q for in-memory conditional check", op),
	}
}

// MultiWaySelfJoinError is returned when a field is compared with itself and
// the query holds more than two instances of the field's table.
type MultiWaySelfJoinError struct {
	Field   string
	Table   string
	Aliases []string
}

func (e *MultiWaySelfJoinError) Error() string {
	return fmt.Sprintf("self-join on %s is ambiguous: table %s appears as {%s}",
		e.Field, e.Table, strings.Join(e.Aliases, ","))
}

// SubqueryColumnCountExceededError is returned when a subquery selects more
// columns than its context allows, e.g. more than one inside "in (...)".
type SubqueryColumnCountExceededError struct {
	Max int
	Got int
}

func (e *SubqueryColumnCountExceededError) Error() string {
	return fmt.Sprintf("subquery selects %d columns, at most %d allowed", e.Got, e.Max)
}

// IsUnsupportedInMemory reports whether err wraps an
// UnsupportedInMemoryOperationError.
func IsUnsupportedInMemory(err error) bool {
	var ue *UnsupportedInMemoryOperationError
	return errors.As(err, &ue)
}

// IsMultiWaySelfJoin reports whether err wraps a MultiWaySelfJoinError.
func IsMultiWaySelfJoin(err error) bool {
	var me *MultiWaySelfJoinError
	return errors.As(err, &me)
}

// IsColumnCountExceeded reports whether err wraps a
// SubqueryColumnCountExceededError.
func IsColumnCountExceeded(err error) bool {
	var ce *SubqueryColumnCountExceededError
	return errors.As(err, &ce)
}
