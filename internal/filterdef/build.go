package filterdef

import (
	"fmt"
	"strings"

	"github.com/bebedizo/DKO/internal/cond"
	"github.com/bebedizo/DKO/internal/query"
	"github.com/bebedizo/DKO/internal/schema"
	"github.com/bebedizo/DKO/internal/scope"
)

// Catalog holds the tables a document declares.
type Catalog struct {
	tables []*schema.Table
	byID   map[string]*schema.Table
	byName map[string][]*schema.Table
}

// NewCatalog builds a catalog from table declarations.
func NewCatalog(defs []TableDef) (*Catalog, error) {
	c := &Catalog{
		byID:   make(map[string]*schema.Table),
		byName: make(map[string][]*schema.Table),
	}
	for i, d := range defs {
		path := fmt.Sprintf("tables[%d]", i)
		if d.Name == "" {
			return nil, defErr(ErrCodeInvalidTable, path, "table name is required")
		}
		if len(d.Columns) == 0 {
			return nil, defErr(ErrCodeInvalidTable, path, "table %s declares no columns", d.Name)
		}
		t := schema.NewTable(d.Schema, d.Name, d.Columns...)
		if _, dup := c.byID[t.ID()]; dup {
			return nil, defErr(ErrCodeInvalidTable, path, "table %s is declared twice", t.ID())
		}
		c.tables = append(c.tables, t)
		c.byID[t.ID()] = t
		c.byName[t.Name()] = append(c.byName[t.Name()], t)
	}
	return c, nil
}

// Tables returns the declared tables in declaration order.
func (c *Catalog) Tables() []*schema.Table {
	return append([]*schema.Table(nil), c.tables...)
}

// Table finds a table by schema-qualified id or by bare name. A bare name
// declared in several schemas is an error.
func (c *Catalog) Table(ref string) (*schema.Table, error) {
	if t, ok := c.byID[ref]; ok {
		return t, nil
	}
	switch matches := c.byName[ref]; len(matches) {
	case 0:
		return nil, fmt.Errorf("unknown table %q", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("table %q is declared in several schemas, qualify it", ref)
	}
}

// Built is a document turned into a query.
type Built struct {
	Dialect   scope.Dialect
	SchemaMap map[string]string
	Catalog   *Catalog
	Query     *query.Select
}

// Condition returns the where clause of the top-level query.
func (b *Built) Condition() cond.Condition {
	return b.Query.Condition()
}

// SQL renders the top-level query in the document's dialect.
func (b *Built) SQL() (string, []any, error) {
	ctx := scope.New(b.Dialect, b.Query.Instances()...)
	if len(b.SchemaMap) > 0 {
		ctx = ctx.WithSchemaMap(b.SchemaMap)
	}
	return b.Query.Render(ctx)
}

// Build resolves the document's tables and fields. When q is non-nil every
// query in the document, subqueries included, runs through it, so exists
// conditions can be evaluated in memory.
func Build(doc *Document, q query.Querier) (*Built, error) {
	if doc == nil {
		return nil, defErr(ErrCodeParse, "", "nil document")
	}

	var dialect scope.Dialect
	switch {
	case doc.Dialect != "":
		d, err := scope.ParseDialect(doc.Dialect)
		if err != nil {
			return nil, defErr(ErrCodeInvalidDialect, "dialect", "%v", err)
		}
		dialect = d
	case q != nil:
		dialect = q.Dialect()
	}

	cat, err := NewCatalog(doc.Tables)
	if err != nil {
		return nil, err
	}

	b := &builder{cat: cat, querier: q}
	sel, err := b.query("query", &doc.Query)
	if err != nil {
		return nil, err
	}
	if len(doc.SchemaMap) > 0 {
		sel = sel.MapSchemas(doc.SchemaMap)
	}

	return &Built{Dialect: dialect, SchemaMap: doc.SchemaMap, Catalog: cat, Query: sel}, nil
}

type builder struct {
	cat     *Catalog
	querier query.Querier
}

func (b *builder) table(path, ref string) (*schema.Table, error) {
	t, err := b.cat.Table(ref)
	if err != nil {
		return nil, defErr(ErrCodeUnknownTable, path, "%v", err)
	}
	return t, nil
}

// field parses "table.column" or "table.column@alias".
func (b *builder) field(path, ref string) (schema.Field, error) {
	if ref == "" {
		return schema.Field{}, defErr(ErrCodeInvalidField, path, "field reference is required")
	}
	name, alias, bound := strings.Cut(ref, "@")
	if bound && alias == "" {
		return schema.Field{}, defErr(ErrCodeInvalidField, path, "empty alias in %q", ref)
	}
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return schema.Field{}, defErr(ErrCodeInvalidField, path, "%q is not of the form table.column", ref)
	}
	t, err := b.table(path, name[:dot])
	if err != nil {
		return schema.Field{}, err
	}
	col := name[dot+1:]
	if !t.HasColumn(col) {
		return schema.Field{}, defErr(ErrCodeUnknownColumn, path, "table %s has no column %q", t.ID(), col)
	}
	f := t.Field(col)
	if bound {
		f = f.As(alias)
	}
	return f, nil
}

func (b *builder) query(path string, def *QueryDef) (*query.Select, error) {
	if len(def.From) == 0 {
		return nil, defErr(ErrCodeInvalidQuery, path+".from", "a query needs at least one table")
	}

	sel := new(query.Select)
	for i, src := range def.From {
		t, err := b.table(fmt.Sprintf("%s.from[%d].table", path, i), src.Table)
		if err != nil {
			return nil, err
		}
		if src.Alias != "" {
			sel = sel.FromAs(t, src.Alias)
		} else {
			sel = sel.From(t)
		}
	}

	for i, j := range def.Joins {
		jpath := fmt.Sprintf("%s.joins[%d]", path, i)
		t, err := b.table(jpath+".table", j.Table)
		if err != nil {
			return nil, err
		}
		var on cond.Condition = cond.True
		if j.On != nil {
			if on, err = b.node(jpath+".on", j.On); err != nil {
				return nil, err
			}
		}
		switch strings.ToLower(j.Kind) {
		case "", "inner":
			if j.Alias != "" {
				sel = sel.JoinAs(t, j.Alias, on)
			} else {
				sel = sel.Join(t, on)
			}
		case "left":
			if j.Alias != "" {
				sel = sel.LeftJoinAs(t, j.Alias, on)
			} else {
				sel = sel.LeftJoin(t, on)
			}
		case "cross":
			if j.On != nil {
				return nil, defErr(ErrCodeInvalidQuery, jpath+".on", "cross joins take no condition")
			}
			if j.Alias != "" {
				sel = sel.CrossAs(t, j.Alias)
			} else {
				sel = sel.Cross(t)
			}
		default:
			return nil, defErr(ErrCodeInvalidQuery, jpath+".kind", "unknown join kind %q", j.Kind)
		}
	}

	if len(def.Columns) > 0 {
		cols := make([]schema.Field, len(def.Columns))
		for i, ref := range def.Columns {
			f, err := b.field(fmt.Sprintf("%s.columns[%d]", path, i), ref)
			if err != nil {
				return nil, err
			}
			cols[i] = f
		}
		sel = sel.Columns(cols...)
	}

	if def.Where != nil {
		c, err := b.node(path+".where", def.Where)
		if err != nil {
			return nil, err
		}
		sel = sel.Where(c)
	}

	for i, term := range def.OrderBy {
		ref, desc := parseOrder(term)
		f, err := b.field(fmt.Sprintf("%s.order_by[%d]", path, i), ref)
		if err != nil {
			return nil, err
		}
		if desc {
			sel = sel.OrderByDesc(f)
		} else {
			sel = sel.OrderBy(f)
		}
	}

	if def.Limit < 0 {
		return nil, defErr(ErrCodeInvalidQuery, path+".limit", "limit must not be negative")
	}
	sel = sel.Limit(def.Limit)

	if b.querier != nil {
		sel = sel.Use(b.querier)
	}
	return sel, nil
}

// parseOrder splits "item.listprice desc" into the field and direction.
func parseOrder(term string) (string, bool) {
	fields := strings.Fields(term)
	if len(fields) == 2 {
		switch strings.ToLower(fields[1]) {
		case "desc":
			return fields[0], true
		case "asc":
			return fields[0], false
		}
	}
	return strings.TrimSpace(term), false
}

func (n *Node) keys() []string {
	var keys []string
	add := func(set bool, key string) {
		if set {
			keys = append(keys, key)
		}
	}
	add(n.And != nil, "and")
	add(n.Or != nil, "or")
	add(n.Not != nil, "not")
	add(n.Literal != nil, "literal")
	add(n.Const != nil, "const")
	add(n.Cmp != nil, "cmp")
	add(n.Between != nil, "between")
	add(n.In != nil, "in")
	add(n.IsNull != "", "is_null")
	add(n.IsNotNull != "", "is_not_null")
	add(n.Exists != nil, "exists")
	add(n.NotExists != nil, "not_exists")
	return keys
}

func (b *builder) node(path string, n *Node) (cond.Condition, error) {
	keys := n.keys()
	if len(keys) != 1 {
		return nil, defErr(ErrCodeInvalidNode, path,
			"a condition needs exactly one key, found %d (%s)", len(keys), strings.Join(keys, ", "))
	}
	path += "." + keys[0]

	switch keys[0] {
	case "and", "or":
		list := n.And
		if keys[0] == "or" {
			list = n.Or
		}
		children := make([]cond.Condition, len(list))
		for i := range list {
			c, err := b.node(fmt.Sprintf("%s[%d]", path, i), &list[i])
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		if keys[0] == "or" {
			return cond.Or(children...), nil
		}
		return cond.And(children...), nil
	case "not":
		c, err := b.node(path, n.Not)
		if err != nil {
			return nil, err
		}
		return cond.Not(c), nil
	case "literal":
		return cond.Lit(*n.Literal), nil
	case "const":
		if *n.Const {
			return cond.True, nil
		}
		return cond.False, nil
	case "cmp":
		return b.cmp(path, n.Cmp)
	case "between":
		f, err := b.field(path+".field", n.Between.Field)
		if err != nil {
			return nil, err
		}
		return cond.Col(f).Between(n.Between.Low, n.Between.High), nil
	case "in":
		return b.in(path, n.In)
	case "is_null":
		f, err := b.field(path, n.IsNull)
		if err != nil {
			return nil, err
		}
		return cond.Col(f).IsNull(), nil
	case "is_not_null":
		f, err := b.field(path, n.IsNotNull)
		if err != nil {
			return nil, err
		}
		return cond.Col(f).IsNotNull(), nil
	case "exists":
		sub, err := b.query(path, n.Exists)
		if err != nil {
			return nil, err
		}
		return cond.Exists(sub), nil
	default:
		sub, err := b.query(path, n.NotExists)
		if err != nil {
			return nil, err
		}
		return cond.NotExists(sub), nil
	}
}

func (b *builder) cmp(path string, def *CmpDef) (cond.Condition, error) {
	f, err := b.field(path+".field", def.Field)
	if err != nil {
		return nil, err
	}
	op := def.Op
	if op == "" {
		op = cond.OpEq
	}

	var operands []string
	if def.Field2 != "" {
		operands = append(operands, "field2")
	}
	if def.Query != nil {
		operands = append(operands, "query")
	}
	if def.Call != nil {
		operands = append(operands, "call")
	}
	if def.Value != nil {
		operands = append(operands, "value")
	}
	if len(operands) > 1 {
		return nil, defErr(ErrCodeInvalidNode, path,
			"a comparison takes one operand, found %s", strings.Join(operands, ", "))
	}

	var rhs any
	switch {
	case def.Field2 != "":
		if rhs, err = b.field(path+".field2", def.Field2); err != nil {
			return nil, err
		}
	case def.Query != nil:
		if rhs, err = b.query(path+".query", def.Query); err != nil {
			return nil, err
		}
	case def.Call != nil:
		if rhs, err = b.call(path+".call", def.Call); err != nil {
			return nil, err
		}
	default:
		rhs = def.Value
	}

	if rhs == nil {
		switch strings.ToLower(strings.Join(strings.Fields(op), " ")) {
		case "<>", "!=":
			return cond.Col(f).IsNotNull(), nil
		case cond.OpIn, cond.OpNotIn:
			return nil, defErr(ErrCodeInvalidNode, path,
				"%q needs a value, field2, query or call operand", op)
		}
	}
	return cond.NewBinary(f, op, rhs), nil
}

func (b *builder) in(path string, def *InDef) (cond.Condition, error) {
	f, err := b.field(path+".field", def.Field)
	if err != nil {
		return nil, err
	}
	col := cond.Col(f)

	if def.Query != nil {
		if len(def.Values) > 0 {
			return nil, defErr(ErrCodeInvalidNode, path, "in takes values or a query, not both")
		}
		sub, err := b.query(path+".query", def.Query)
		if err != nil {
			return nil, err
		}
		if def.Negate {
			return col.NotIn(sub), nil
		}
		return col.In(sub), nil
	}

	op := cond.OpIn
	if def.Negate {
		op = cond.OpNotIn
	}
	return cond.NewIn(f, op, def.Values), nil
}

func (b *builder) call(path string, def *CallDef) (cond.Function, error) {
	if def.Name == "" {
		return nil, defErr(ErrCodeInvalidNode, path+".name", "function name is required")
	}
	args := make([]any, len(def.Args))
	for i, a := range def.Args {
		apath := fmt.Sprintf("%s.args[%d]", path, i)
		set := 0
		for _, ok := range []bool{a.Field != "", a.Call != nil, a.Raw != "", a.Value != nil} {
			if ok {
				set++
			}
		}
		if set > 1 {
			return nil, defErr(ErrCodeInvalidNode, apath, "an argument takes one of field, call, raw or value")
		}
		switch {
		case a.Field != "":
			f, err := b.field(apath+".field", a.Field)
			if err != nil {
				return nil, err
			}
			args[i] = f
		case a.Call != nil:
			fn, err := b.call(apath+".call", a.Call)
			if err != nil {
				return nil, err
			}
			args[i] = fn
		case a.Raw != "":
			args[i] = cond.Raw(a.Raw)
		default:
			args[i] = a.Value
		}
	}
	return cond.Call(def.Name, args...), nil
}
