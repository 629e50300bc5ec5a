package cond

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bebedizo/DKO/internal/schema"
)

// Row is a materialized row that can supply a value for any field.
// Get returns nil for SQL NULL and for fields the row does not carry.
type Row interface {
	Get(f schema.Field) any
}

// evaluator walks a tree against one row. strict rejects ExistsCondition.
type evaluator struct {
	ctx    context.Context
	strict bool
}

// Match evaluates c against row.
//
// Every variant is evaluated without I/O except ExistsCondition, which runs
// its subquery through Counter; an Exists failure is logged and treated as
// no match. Use MatchStrict to forbid that.
func Match(c Condition, row Row) (bool, error) {
	return MatchContext(context.Background(), c, row)
}

// MatchContext is Match with a context for the Exists subquery.
func MatchContext(ctx context.Context, c Condition, row Row) (bool, error) {
	e := &evaluator{ctx: ctx}
	t, err := e.eval(c, row)
	return t == truthTrue, err
}

// MatchStrict evaluates c against row and fails with
// UnsupportedInMemoryOperationError on ExistsCondition instead of querying.
func MatchStrict(c Condition, row Row) (bool, error) {
	e := &evaluator{ctx: context.Background(), strict: true}
	t, err := e.eval(c, row)
	return t == truthTrue, err
}

// truth is a SQL truth value. Comparisons involving NULL are unknown, and
// an unknown result at the top of the tree does not match.
type truth uint8

const (
	truthFalse truth = iota
	truthTrue
	truthUnknown
)

func truthOf(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

func (t truth) not() truth {
	switch t {
	case truthTrue:
		return truthFalse
	case truthFalse:
		return truthTrue
	default:
		return truthUnknown
	}
}

func (e *evaluator) eval(c Condition, row Row) (truth, error) {
	switch x := c.(type) {
	case Const:
		return truthOf(x.value), nil
	case *Literal:
		return truthFalse, &UnsupportedInMemoryOperationError{
			Op:     "literal",
			Reason: "literal conditions cannot be evaluated in memory",
		}
	case *NotCondition:
		t, err := e.eval(x.child, row)
		if err != nil {
			return truthFalse, err
		}
		return t.not(), nil
	case *AndCondition:
		result := truthTrue
		for _, child := range x.children {
			t, err := e.eval(child, row)
			if err != nil {
				return truthFalse, err
			}
			if t == truthFalse {
				return truthFalse, nil
			}
			if t == truthUnknown {
				result = truthUnknown
			}
		}
		return result, nil
	case *OrCondition:
		result := truthFalse
		for _, child := range x.children {
			t, err := e.eval(child, row)
			if err != nil {
				return truthFalse, err
			}
			if t == truthTrue {
				return truthTrue, nil
			}
			if t == truthUnknown {
				result = truthUnknown
			}
		}
		return result, nil
	case *Unary:
		return matchUnary(x, row)
	case *Binary:
		return matchBinary(x, row)
	case *Ternary:
		return matchTernary(x, row)
	case *InCondition:
		return matchIn(x, row)
	case *ExistsCondition:
		return e.matchExists(x)
	case nil:
		return truthFalse, fmt.Errorf("cannot evaluate nil condition")
	default:
		return truthFalse, &UnsupportedInMemoryOperationError{
			Op:     fmt.Sprintf("%T", c),
			Reason: "no in-memory meaning",
		}
	}
}

func matchUnary(u *Unary, row Row) (truth, error) {
	switch u.op {
	case OpIsNull:
		return truthOf(row.Get(u.field) == nil), nil
	case OpIsNotNull:
		return truthOf(row.Get(u.field) != nil), nil
	default:
		return truthFalse, unrecognizedOp(u.op)
	}
}

func matchBinary(b *Binary, row Row) (truth, error) {
	if b.isNullTest() {
		return truthOf(row.Get(b.field) == nil), nil
	}
	var rhs any
	switch b.rhs.kind {
	case operandValue:
		rhs = b.rhs.value
	case operandField:
		rhs = row.Get(b.rhs.field)
	case operandSubquery:
		return truthFalse, &UnsupportedInMemoryOperationError{
			Op:     b.op + " (subquery)",
			Reason: "subquery operands cannot be evaluated in memory",
		}
	case operandFunction:
		return truthFalse, &UnsupportedInMemoryOperationError{
			Op:     b.op + " " + describeOperand(b.rhs),
			Reason: "function operands cannot be evaluated in memory",
		}
	}
	t, err := compareOp(b.op, row.Get(b.field), rhs)
	if err != nil {
		return truthFalse, fmt.Errorf("evaluate %s: %w", b, err)
	}
	return t, nil
}

func compareOp(op string, lhs, rhs any) (truth, error) {
	switch op {
	case OpEq, OpNe, "!=", OpLt, OpLe, OpGt, OpGe, OpIn, OpNotIn:
	default:
		return truthFalse, unrecognizedOp(op)
	}
	if lhs == nil || rhs == nil {
		return truthUnknown, nil
	}
	switch op {
	case OpEq, OpIn:
		return truthOf(valuesEqual(lhs, rhs)), nil
	case OpNe, "!=", OpNotIn:
		return truthOf(!valuesEqual(lhs, rhs)), nil
	}
	c, err := compareValues(lhs, rhs)
	if err != nil {
		return truthFalse, err
	}
	switch op {
	case OpLt:
		return truthOf(c < 0), nil
	case OpLe:
		return truthOf(c <= 0), nil
	case OpGt:
		return truthOf(c > 0), nil
	default:
		return truthOf(c >= 0), nil
	}
}

// matchTernary implements between/and as lower <= v < upper. The exclusive
// upper bound differs from SQL BETWEEN and is intentional. A nil bound is
// open; a nil value is unknown.
func matchTernary(t *Ternary, row Row) (truth, error) {
	if t.op1 != OpBetween {
		return truthFalse, unrecognizedOp(t.op1)
	}
	if t.op2 != OpAnd {
		return truthFalse, unrecognizedOp(t.op2)
	}
	for _, bound := range []operand{t.lo, t.hi} {
		if bound.kind != operandValue {
			return truthFalse, &UnsupportedInMemoryOperationError{
				Op:     OpBetween + " " + describeOperand(bound),
				Reason: "only literal bounds can be evaluated in memory",
			}
		}
	}

	v := row.Get(t.field)
	if v == nil {
		return truthUnknown, nil
	}
	if lo := t.lo.value; lo != nil {
		c, err := compareValues(lo, v)
		if err != nil {
			return truthFalse, fmt.Errorf("evaluate %s: %w", t, err)
		}
		if c > 0 {
			return truthFalse, nil
		}
	}
	if hi := t.hi.value; hi != nil {
		c, err := compareValues(hi, v)
		if err != nil {
			return truthFalse, fmt.Errorf("evaluate %s: %w", t, err)
		}
		if c <= 0 {
			return truthFalse, nil
		}
	}
	return truthTrue, nil
}

// matchIn follows SQL: a nil value, or a miss against a set holding nil, is
// unknown. An empty set is decided without looking at the value: in is
// false and not in is true.
func matchIn(in *InCondition, row Row) (truth, error) {
	var negate bool
	switch in.op {
	case OpIn:
	case OpNotIn:
		negate = true
	default:
		return truthFalse, unrecognizedOp(in.op)
	}
	if len(in.set) == 0 {
		return truthOf(negate), nil
	}
	v := row.Get(in.field)
	if v == nil {
		return truthUnknown, nil
	}
	var sawNil bool
	for _, member := range in.set {
		if member == nil {
			sawNil = true
			continue
		}
		if valuesEqual(v, member) {
			return truthOf(!negate), nil
		}
	}
	if sawNil {
		return truthUnknown, nil
	}
	return truthOf(negate), nil
}

func (e *evaluator) matchExists(x *ExistsCondition) (truth, error) {
	if e.strict {
		return truthFalse, &UnsupportedInMemoryOperationError{
			Op:     "exists",
			Reason: "exists requires running a query; rejected in strict evaluation",
		}
	}
	return truthOf(runExists(e.ctx, x.sub)), nil
}

// runExists runs sub and reports whether it returned a row. This is the
// only evaluator path that performs I/O. Failures are logged, never returned.
func runExists(ctx context.Context, sub Subquery) (found bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("exists subquery panicked, treating as no match", "panic", r)
			found = false
		}
	}()

	counter, ok := sub.(Counter)
	if !ok {
		slog.Warn("exists subquery cannot run in memory, treating as no match",
			"subquery", fmt.Sprintf("%T", sub))
		return false
	}
	n, err := counter.Count(ctx)
	if err != nil {
		slog.Warn("exists subquery failed, treating as no match", "error", err)
		return false
	}
	return n > 0
}
