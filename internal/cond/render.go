package cond

import (
	"fmt"
	"strings"

	"github.com/bebedizo/DKO/internal/scope"
)

// renderer holds the output of one Render call. It is never stored on a
// condition.
type renderer struct {
	sb       strings.Builder
	bindings []any
}

// Render renders c against ctx. It returns the SQL fragment, using ? for
// every parameter, and the bindings in placeholder order.
//
// Any resolution error aborts the render; no partial SQL is returned.
func Render(c Condition, ctx *scope.Context) (string, []any, error) {
	if c == nil {
		return "", nil, fmt.Errorf("cannot render nil condition")
	}
	if ctx == nil {
		return "", nil, fmt.Errorf("cannot render without a resolution context")
	}
	r := &renderer{bindings: []any{}}
	if err := r.render(c, ctx); err != nil {
		return "", nil, err
	}
	return r.sb.String(), r.bindings, nil
}

func (r *renderer) render(c Condition, ctx *scope.Context) error {
	switch x := c.(type) {
	case Const:
		if x.value {
			r.sb.WriteString("1=1")
		} else {
			r.sb.WriteString("1=0")
		}
		return nil
	case *Literal:
		r.sb.WriteString(x.text)
		return nil
	case *NotCondition:
		r.sb.WriteString("not ")
		if x.parens {
			r.sb.WriteByte('(')
		}
		if err := r.render(x.child, ctx); err != nil {
			return err
		}
		if x.parens {
			r.sb.WriteByte(')')
		}
		return nil
	case *AndCondition:
		return r.renderList(x.children, " and ", ctx)
	case *OrCondition:
		return r.renderList(x.children, " or ", ctx)
	case *Unary:
		if err := r.writeField(x, ctx); err != nil {
			return err
		}
		r.sb.WriteByte(' ')
		r.sb.WriteString(x.op)
		return nil
	case *Binary:
		return r.renderBinary(x, ctx)
	case *Ternary:
		return r.renderTernary(x, ctx)
	case *InCondition:
		return r.renderIn(x, ctx)
	case *ExistsCondition:
		r.sb.WriteString("exists ")
		return r.renderSubquery(x.sub, false, ctx)
	default:
		return fmt.Errorf("unsupported condition type: %T", c)
	}
}

func (r *renderer) renderList(children []Condition, sep string, ctx *scope.Context) error {
	r.sb.WriteByte('(')
	for i, child := range children {
		if i > 0 {
			r.sb.WriteString(sep)
		}
		if err := r.render(child, ctx); err != nil {
			return err
		}
	}
	r.sb.WriteByte(')')
	return nil
}

// writeField writes the resolved field of a comparison node.
func (r *renderer) writeField(c Condition, ctx *scope.Context) error {
	var col string
	var err error
	switch x := c.(type) {
	case *Unary:
		col, err = ctx.Deref(x.field)
	case *Binary:
		col, err = ctx.Deref(x.field)
	case *Ternary:
		col, err = ctx.Deref(x.field)
	case *InCondition:
		col, err = ctx.Deref(x.field)
	default:
		return fmt.Errorf("condition %T has no field", c)
	}
	if err != nil {
		return err
	}
	r.sb.WriteString(col)
	return nil
}

func (r *renderer) renderBinary(b *Binary, ctx *scope.Context) error {
	if b.rhs.kind == operandField {
		return r.renderFieldPair(b, ctx)
	}
	if err := r.writeField(b, ctx); err != nil {
		return err
	}
	if b.isNullTest() {
		r.sb.WriteString(" " + OpIsNull)
		return nil
	}
	r.sb.WriteString(" " + b.op + " ")
	return r.renderRHS(b, ctx)
}

// renderRHS renders the right-hand side of b. A set operator against a
// field or function gets the parentheses a subquery brings itself.
func (r *renderer) renderRHS(b *Binary, ctx *scope.Context) error {
	if !isSetOp(b.op) || b.rhs.kind == operandSubquery {
		return r.renderOperand(b.rhs, b.op == OpIn, ctx)
	}
	r.sb.WriteByte('(')
	if err := r.renderOperand(b.rhs, false, ctx); err != nil {
		return err
	}
	r.sb.WriteByte(')')
	return nil
}

// renderFieldPair renders a field-to-field comparison. When both sides are
// the same unbound field and the current level holds exactly two instances
// of its table, the sides are qualified with those two aliases in order.
func (r *renderer) renderFieldPair(b *Binary, ctx *scope.Context) error {
	left, right := b.field, b.rhs.field
	if !left.IsBound() && !right.IsBound() && left.SameField(right) && left.Table() != nil {
		aliases := ctx.Aliases(left.Table())
		switch {
		case len(aliases) > 2:
			return &MultiWaySelfJoinError{
				Field:   left.String(),
				Table:   left.Table().ID(),
				Aliases: aliases,
			}
		case len(aliases) == 2:
			lhs, rhs := aliases[0]+"."+left.Name(), aliases[1]+"."+right.Name()
			if isSetOp(b.op) {
				rhs = "(" + rhs + ")"
			}
			r.sb.WriteString(lhs + " " + b.op + " " + rhs)
			return nil
		}
	}
	if err := r.writeField(b, ctx); err != nil {
		return err
	}
	r.sb.WriteString(" " + b.op + " ")
	return r.renderRHS(b, ctx)
}

func (r *renderer) renderTernary(t *Ternary, ctx *scope.Context) error {
	if err := r.writeField(t, ctx); err != nil {
		return err
	}
	r.sb.WriteString(" " + t.op1 + " ")
	if err := r.renderOperand(t.lo, false, ctx); err != nil {
		return err
	}
	r.sb.WriteString(" " + t.op2 + " ")
	return r.renderOperand(t.hi, false, ctx)
}

func (r *renderer) renderIn(in *InCondition, ctx *scope.Context) error {
	if err := r.writeField(in, ctx); err != nil {
		return err
	}
	r.sb.WriteString(" " + in.op + " (")
	if len(in.set) == 0 {
		r.sb.WriteString("null")
	}
	for i, v := range in.set {
		if i > 0 {
			r.sb.WriteByte(',')
		}
		r.sb.WriteByte('?')
		r.bindings = append(r.bindings, v)
	}
	r.sb.WriteByte(')')
	return nil
}

func (r *renderer) renderOperand(op operand, scalar bool, ctx *scope.Context) error {
	switch op.kind {
	case operandValue:
		r.sb.WriteByte('?')
		r.bindings = append(r.bindings, op.value)
	case operandField:
		col, err := ctx.Deref(op.field)
		if err != nil {
			return err
		}
		r.sb.WriteString(col)
	case operandFunction:
		text, args, err := op.fn.RenderSQL(ctx)
		if err != nil {
			return err
		}
		r.sb.WriteString(text)
		r.bindings = append(r.bindings, args...)
	case operandSubquery:
		return r.renderSubquery(op.sub, scalar, ctx)
	default:
		return fmt.Errorf("unknown operand kind %d", op.kind)
	}
	return nil
}

// renderSubquery renders sub in a child context of ctx, capped to a single
// output column when scalar, and splices its text and bindings in place.
func (r *renderer) renderSubquery(sub Subquery, scalar bool, ctx *scope.Context) error {
	if sub == nil {
		return fmt.Errorf("cannot render nil subquery")
	}
	inner := scope.NewChild(ctx, sub.Instances()...)
	if scalar {
		inner = inner.WithMaxFields(1)
	}
	text, args, err := sub.Render(inner)
	if err != nil {
		return fmt.Errorf("render subquery: %w", err)
	}
	r.sb.WriteByte('(')
	r.sb.WriteString(text)
	r.sb.WriteByte(')')
	r.bindings = append(r.bindings, args...)
	return nil
}
