package cond

import (
	"fmt"
	"strings"

	"github.com/bebedizo/DKO/internal/schema"
)

// describe formats c without a resolution context: fields print as
// table.column, values inline and subqueries as "(subquery)". For logs and
// error messages only, never for execution.
func describe(c Condition) string {
	var sb strings.Builder
	describeTo(&sb, c)
	return sb.String()
}

func describeTo(sb *strings.Builder, c Condition) {
	switch x := c.(type) {
	case Const:
		if x.value {
			sb.WriteString("1=1")
		} else {
			sb.WriteString("1=0")
		}
	case *Literal:
		sb.WriteString(x.text)
	case *NotCondition:
		sb.WriteString("not ")
		if x.parens {
			sb.WriteByte('(')
		}
		describeTo(sb, x.child)
		if x.parens {
			sb.WriteByte(')')
		}
	case *AndCondition:
		describeList(sb, x.children, " and ")
	case *OrCondition:
		describeList(sb, x.children, " or ")
	case *Unary:
		fmt.Fprintf(sb, "%s %s", x.field, x.op)
	case *Binary:
		if x.isNullTest() {
			fmt.Fprintf(sb, "%s %s", x.field, OpIsNull)
			return
		}
		fmt.Fprintf(sb, "%s %s %s", x.field, x.op, describeOperand(x.rhs))
	case *Ternary:
		fmt.Fprintf(sb, "%s %s %s %s %s", x.field, x.op1, describeOperand(x.lo), x.op2, describeOperand(x.hi))
	case *InCondition:
		if len(x.set) == 0 {
			fmt.Fprintf(sb, "%s %s (null)", x.field, x.op)
			return
		}
		parts := make([]string, len(x.set))
		for i, v := range x.set {
			parts[i] = describeValue(v)
		}
		fmt.Fprintf(sb, "%s %s (%s)", x.field, x.op, strings.Join(parts, ","))
	case *ExistsCondition:
		sb.WriteString("exists (subquery)")
	default:
		fmt.Fprintf(sb, "%T", c)
	}
}

func describeList(sb *strings.Builder, children []Condition, sep string) {
	sb.WriteByte('(')
	for i, child := range children {
		if i > 0 {
			sb.WriteString(sep)
		}
		describeTo(sb, child)
	}
	sb.WriteByte(')')
}

func describeOperand(op operand) string {
	switch op.kind {
	case operandField:
		return op.field.String()
	case operandSubquery:
		return "(subquery)"
	case operandFunction:
		return describeValue(op.fn)
	default:
		return describeValue(op.value)
	}
}

func describeValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case schema.Field:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
