package cond

import (
	"reflect"

	"github.com/bebedizo/DKO/internal/schema"
)

// Column is the fluent entry point for building conditions on one field.
//
//	cond.Col(Item.Field("listprice")).Gt(10)
type Column struct {
	field schema.Field
}

// Col starts a condition on f.
func Col(f schema.Field) Column { return Column{field: f} }

// Field returns the wrapped field.
func (c Column) Field() schema.Field { return c.field }

// Eq is "field = v". v may be a literal, a schema.Field, a Subquery or a
// Function. Eq(nil) is "field is null".
func (c Column) Eq(v any) Condition { return NewBinary(c.field, OpEq, v) }

// Ne is "field <> v". Ne(nil) is "field is not null".
func (c Column) Ne(v any) Condition {
	if v == nil {
		return c.IsNotNull()
	}
	return NewBinary(c.field, OpNe, v)
}

func (c Column) Lt(v any) Condition      { return NewBinary(c.field, OpLt, v) }
func (c Column) Le(v any) Condition      { return NewBinary(c.field, OpLe, v) }
func (c Column) Gt(v any) Condition      { return NewBinary(c.field, OpGt, v) }
func (c Column) Ge(v any) Condition      { return NewBinary(c.field, OpGe, v) }
func (c Column) Like(v any) Condition    { return NewBinary(c.field, OpLike, v) }
func (c Column) NotLike(v any) Condition { return NewBinary(c.field, OpNotLike, v) }

// In is "field in (...)". A single Subquery argument builds "field in
// (select ...)"; a single slice argument is expanded into its elements.
func (c Column) In(values ...any) Condition {
	if len(values) == 1 {
		if sub, ok := values[0].(Subquery); ok {
			return NewBinary(c.field, OpIn, sub)
		}
	}
	return NewIn(c.field, OpIn, expandSet(values))
}

// NotIn is "field not in (...)", with the same argument rules as In.
func (c Column) NotIn(values ...any) Condition {
	if len(values) == 1 {
		if sub, ok := values[0].(Subquery); ok {
			return NewBinary(c.field, OpNotIn, sub)
		}
	}
	return NewIn(c.field, OpNotIn, expandSet(values))
}

// Between is "field between lo and hi". In memory the upper bound is
// exclusive.
func (c Column) Between(lo, hi any) Condition {
	return NewTernary(c.field, OpBetween, lo, OpAnd, hi)
}

func (c Column) IsNull() Condition    { return NewUnary(c.field, OpIsNull) }
func (c Column) IsNotNull() Condition { return NewUnary(c.field, OpIsNotNull) }

// expandSet flattens a lone slice argument ([]int, []string, ...) so
// In([]int{1, 2}) and In(1, 2) are the same. []byte stays a single value.
func expandSet(values []any) []any {
	if len(values) != 1 || values[0] == nil {
		return values
	}
	if _, ok := values[0].([]byte); ok {
		return values
	}
	rv := reflect.ValueOf(values[0])
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return values
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
