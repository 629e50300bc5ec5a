package cond

import (
	"strings"

	"github.com/bebedizo/DKO/internal/schema"
	"github.com/bebedizo/DKO/internal/scope"
)

// Function is a SQL expression usable as a comparison operand, such as
// lower(item.name) or coalesce(item.listprice, ?).
type Function interface {
	RenderSQL(ctx *scope.Context) (string, []any, error)
}

type call struct {
	name string
	args []any
}

// Call returns a function call expression. Arguments that are schema.Field
// values are resolved against the render context, Functions are rendered in
// place, nil renders as null and anything else is bound as a parameter.
func Call(name string, args ...any) Function {
	return call{name: name, args: append([]any(nil), args...)}
}

func (c call) RenderSQL(ctx *scope.Context) (string, []any, error) {
	var sb strings.Builder
	var bindings []any
	sb.WriteString(c.name)
	sb.WriteByte('(')
	for i, arg := range c.args {
		if i > 0 {
			sb.WriteString(", ")
		}
		switch a := arg.(type) {
		case nil:
			sb.WriteString("null")
		case schema.Field:
			col, err := ctx.Deref(a)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(col)
		case Function:
			text, args, err := a.RenderSQL(ctx)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(text)
			bindings = append(bindings, args...)
		default:
			sb.WriteByte('?')
			bindings = append(bindings, a)
		}
	}
	sb.WriteByte(')')
	return sb.String(), bindings, nil
}

func (c call) String() string {
	parts := make([]string, len(c.args))
	for i, arg := range c.args {
		parts[i] = describeValue(arg)
	}
	return c.name + "(" + strings.Join(parts, ", ") + ")"
}

type raw string

// Raw returns a function expression emitted verbatim, e.g. Raw("current_date").
func Raw(text string) Function { return raw(text) }

func (r raw) RenderSQL(*scope.Context) (string, []any, error) {
	return string(r), nil, nil
}

func (r raw) String() string { return string(r) }
