package cond

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/bebedizo/DKO/internal/schema"
	"github.com/bebedizo/DKO/internal/scope"
)

// Comparator spellings understood by the renderer and the evaluator.
const (
	OpEq        = "="
	OpNe        = "<>"
	OpLt        = "<"
	OpLe        = "<="
	OpGt        = ">"
	OpGe        = ">="
	OpLike      = "like"
	OpNotLike   = "not like"
	OpIn        = "in"
	OpNotIn     = "not in"
	OpBetween   = "between"
	OpAnd       = "and"
	OpIsNull    = "is null"
	OpIsNotNull = "is not null"
)

// Condition is a node of the predicate tree.
//
// This is a sealed interface - only types in this package implement it.
type Condition interface {
	// And returns the conjunction of the receiver followed by conds.
	And(conds ...Condition) Condition
	// Or returns the disjunction of the receiver followed by conds.
	Or(conds ...Condition) Condition
	// Not returns the negation of the receiver.
	Not() Condition
	// String returns unresolved, human-readable text for diagnostics.
	String() string

	conditionNode()
}

// Subquery is a nested query that can appear as a Binary operand or inside
// ExistsCondition. It is implemented by the query builder.
type Subquery interface {
	// Instances lists the tables the subquery selects and joins. They become
	// the child context the subquery renders against.
	Instances() []scope.Instance
	// Render renders the subquery against its own context.
	Render(ctx *scope.Context) (string, []any, error)
}

// Counter is implemented by subqueries that can run themselves. The Exists
// evaluator uses it.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// normalizeOp trims, collapses inner whitespace and case-folds a comparator,
// so " NOT  IN " and "not in" are the same operator.
func normalizeOp(op string) string {
	return cases.Fold().String(strings.Join(strings.Fields(op), " "))
}

// Const is the always-true or always-false condition.
type Const struct {
	value bool
}

var (
	// True matches every row and renders as 1=1.
	True Condition = Const{value: true}
	// False matches no row and renders as 1=0.
	False Condition = Const{value: false}
)

// Value returns the constant's truth value.
func (c Const) Value() bool { return c.value }

func (c Const) And(conds ...Condition) Condition { return And(prepend(c, conds)...) }
func (c Const) Or(conds ...Condition) Condition  { return Or(prepend(c, conds)...) }
func (c Const) Not() Condition                   { return Not(c) }
func (c Const) String() string                   { return describe(c) }
func (Const) conditionNode()                     {}

// Literal is raw SQL text inserted verbatim into the rendered output.
// It cannot be evaluated in memory.
type Literal struct {
	text string
}

// Lit returns a Literal condition. The text is not parsed or escaped.
func Lit(text string) Condition { return &Literal{text: text} }

// Text returns the raw SQL.
func (l *Literal) Text() string { return l.text }

func (l *Literal) And(conds ...Condition) Condition { return And(prepend(l, conds)...) }
func (l *Literal) Or(conds ...Condition) Condition  { return Or(prepend(l, conds)...) }
func (l *Literal) Not() Condition                   { return Not(l) }
func (l *Literal) String() string                   { return describe(l) }
func (*Literal) conditionNode()                     {}

// NotCondition negates its child.
type NotCondition struct {
	child  Condition
	parens bool
}

// Not returns the negation of c, rendered as "not (c)".
func Not(c Condition) Condition { return NewNot(c, true) }

// NewNot returns the negation of c. With parens false the child is rendered
// without surrounding parentheses, which negated exists uses.
func NewNot(c Condition, parens bool) Condition {
	return &NotCondition{child: c, parens: parens}
}

// Child returns the negated condition.
func (n *NotCondition) Child() Condition { return n.child }

// Parens reports whether the child is parenthesized when rendered.
func (n *NotCondition) Parens() bool { return n.parens }

func (n *NotCondition) And(conds ...Condition) Condition { return And(prepend(n, conds)...) }
func (n *NotCondition) Or(conds ...Condition) Condition  { return Or(prepend(n, conds)...) }
func (n *NotCondition) Not() Condition                   { return Not(n) }
func (n *NotCondition) String() string                   { return describe(n) }
func (*NotCondition) conditionNode()                     {}

// AndCondition is true iff every child is true.
type AndCondition struct {
	children []Condition
}

// And returns the conjunction of conds in order. Operands that are
// themselves AndConditions contribute their children directly. nil operands
// are skipped; with no operands left the result is True.
func And(conds ...Condition) Condition {
	children := make([]Condition, 0, len(conds))
	for _, c := range conds {
		switch x := c.(type) {
		case nil:
		case *AndCondition:
			children = append(children, x.children...)
		default:
			children = append(children, c)
		}
	}
	if len(children) == 0 {
		return True
	}
	return &AndCondition{children: children}
}

// Children returns a copy of the operands in order.
func (a *AndCondition) Children() []Condition { return slices.Clone(a.children) }

func (a *AndCondition) And(conds ...Condition) Condition { return And(prepend(a, conds)...) }
func (a *AndCondition) Or(conds ...Condition) Condition  { return Or(prepend(a, conds)...) }
func (a *AndCondition) Not() Condition                   { return Not(a) }
func (a *AndCondition) String() string                   { return describe(a) }
func (*AndCondition) conditionNode()                     {}

// OrCondition is true iff any child is true.
type OrCondition struct {
	children []Condition
}

// Or returns the disjunction of conds in order, flattening OrCondition
// operands. nil operands are skipped; with no operands left the result is
// False.
func Or(conds ...Condition) Condition {
	children := make([]Condition, 0, len(conds))
	for _, c := range conds {
		switch x := c.(type) {
		case nil:
		case *OrCondition:
			children = append(children, x.children...)
		default:
			children = append(children, c)
		}
	}
	if len(children) == 0 {
		return False
	}
	return &OrCondition{children: children}
}

// Children returns a copy of the operands in order.
func (o *OrCondition) Children() []Condition { return slices.Clone(o.children) }

func (o *OrCondition) And(conds ...Condition) Condition { return And(prepend(o, conds)...) }
func (o *OrCondition) Or(conds ...Condition) Condition  { return Or(prepend(o, conds)...) }
func (o *OrCondition) Not() Condition                   { return Not(o) }
func (o *OrCondition) String() string                   { return describe(o) }
func (*OrCondition) conditionNode()                     {}

// Unary tests a field with a suffix comparator such as "is null".
type Unary struct {
	field schema.Field
	op    string
}

// NewUnary returns a Unary condition. Only OpIsNull and OpIsNotNull can be
// evaluated in memory.
func NewUnary(f schema.Field, op string) Condition {
	return &Unary{field: f, op: normalizeOp(op)}
}

func (u *Unary) Field() schema.Field { return u.field }
func (u *Unary) Op() string          { return u.op }

func (u *Unary) And(conds ...Condition) Condition { return And(prepend(u, conds)...) }
func (u *Unary) Or(conds ...Condition) Condition  { return Or(prepend(u, conds)...) }
func (u *Unary) Not() Condition                   { return Not(u) }
func (u *Unary) String() string                   { return describe(u) }
func (*Unary) conditionNode()                     {}

type operandKind int

const (
	operandValue operandKind = iota
	operandField
	operandSubquery
	operandFunction
)

// operand is the right-hand side of a comparison.
type operand struct {
	kind  operandKind
	value any
	field schema.Field
	sub   Subquery
	fn    Function
}

func operandOf(v any) operand {
	switch x := v.(type) {
	case schema.Field:
		return operand{kind: operandField, field: x}
	case Subquery:
		return operand{kind: operandSubquery, sub: x}
	case Function:
		return operand{kind: operandFunction, fn: x}
	default:
		return operand{kind: operandValue, value: v}
	}
}

// Binary compares a field with a literal, a second field, a subquery or a
// function call.
type Binary struct {
	field schema.Field
	op    string
	rhs   operand
}

// NewBinary returns a Binary condition. The operand kind is chosen from the
// dynamic type of rhs: schema.Field, Subquery, Function, or a literal value.
// A nil literal renders and evaluates as "is null" whatever op is.
//
// With "in" or "not in" a non-nil literal (or a slice of them) becomes an
// InCondition; a field or function operand is rendered inside parentheses.
func NewBinary(f schema.Field, op string, rhs any) Condition {
	op = normalizeOp(op)
	o := operandOf(rhs)
	if isSetOp(op) && o.kind == operandValue && rhs != nil {
		return NewIn(f, op, expandSet([]any{rhs}))
	}
	return &Binary{field: f, op: op, rhs: o}
}

func isSetOp(op string) bool { return op == OpIn || op == OpNotIn }

func (b *Binary) Field() schema.Field { return b.field }
func (b *Binary) Op() string          { return b.op }

// Operand returns the right-hand side: the literal value, schema.Field,
// Subquery or Function it was built with.
func (b *Binary) Operand() any {
	switch b.rhs.kind {
	case operandField:
		return b.rhs.field
	case operandSubquery:
		return b.rhs.sub
	case operandFunction:
		return b.rhs.fn
	default:
		return b.rhs.value
	}
}

func (b *Binary) isNullTest() bool {
	return b.rhs.kind == operandValue && b.rhs.value == nil
}

func (b *Binary) And(conds ...Condition) Condition { return And(prepend(b, conds)...) }
func (b *Binary) Or(conds ...Condition) Condition  { return Or(prepend(b, conds)...) }
func (b *Binary) Not() Condition                   { return Not(b) }
func (b *Binary) String() string                   { return describe(b) }
func (*Binary) conditionNode()                     {}

// Ternary is "field op1 lo op2 hi", built for BETWEEN ... AND.
type Ternary struct {
	field schema.Field
	op1   string
	lo    operand
	op2   string
	hi    operand
}

// NewTernary returns a Ternary condition. lo and hi may be literal values or
// Functions.
func NewTernary(f schema.Field, op1 string, lo any, op2 string, hi any) Condition {
	return &Ternary{
		field: f,
		op1:   normalizeOp(op1),
		lo:    operandOf(lo),
		op2:   normalizeOp(op2),
		hi:    operandOf(hi),
	}
}

func (t *Ternary) Field() schema.Field  { return t.field }
func (t *Ternary) Ops() (string, string) { return t.op1, t.op2 }

func (t *Ternary) And(conds ...Condition) Condition { return And(prepend(t, conds)...) }
func (t *Ternary) Or(conds ...Condition) Condition  { return Or(prepend(t, conds)...) }
func (t *Ternary) Not() Condition                   { return Not(t) }
func (t *Ternary) String() string                   { return describe(t) }
func (*Ternary) conditionNode()                     {}

// InCondition tests membership of a field value in a literal set.
type InCondition struct {
	field schema.Field
	op    string
	set   []any
}

// NewIn returns an InCondition with op OpIn or OpNotIn. An empty set renders
// as "in (null)".
func NewIn(f schema.Field, op string, set []any) Condition {
	return &InCondition{field: f, op: normalizeOp(op), set: slices.Clone(set)}
}

func (in *InCondition) Field() schema.Field { return in.field }
func (in *InCondition) Op() string          { return in.op }
func (in *InCondition) Set() []any          { return slices.Clone(in.set) }

func (in *InCondition) And(conds ...Condition) Condition { return And(prepend(in, conds)...) }
func (in *InCondition) Or(conds ...Condition) Condition  { return Or(prepend(in, conds)...) }
func (in *InCondition) Not() Condition                   { return Not(in) }
func (in *InCondition) String() string                   { return describe(in) }
func (*InCondition) conditionNode()                      {}

// ExistsCondition is true when its subquery returns at least one row.
type ExistsCondition struct {
	sub Subquery
}

// Exists returns an ExistsCondition over sub.
func Exists(sub Subquery) Condition { return &ExistsCondition{sub: sub} }

// NotExists returns the negation of Exists(sub), rendered "not exists (...)".
func NotExists(sub Subquery) Condition { return Exists(sub).Not() }

func (e *ExistsCondition) Subquery() Subquery { return e.sub }

func (e *ExistsCondition) And(conds ...Condition) Condition { return And(prepend(e, conds)...) }
func (e *ExistsCondition) Or(conds ...Condition) Condition  { return Or(prepend(e, conds)...) }

// Not negates without parentheses so the output reads "not exists (...)".
func (e *ExistsCondition) Not() Condition { return NewNot(e, false) }
func (e *ExistsCondition) String() string { return describe(e) }
func (*ExistsCondition) conditionNode()   {}

func prepend(c Condition, conds []Condition) []Condition {
	all := make([]Condition, 0, len(conds)+1)
	all = append(all, c)
	return append(all, conds...)
}
