package scope

import (
	"maps"
	"math"
	"slices"

	"github.com/bebedizo/DKO/internal/schema"
)

// Unlimited is the MaxFields value of an uncapped context.
const Unlimited = math.MaxInt

// Instance describes one table's participation in a query.
type Instance struct {
	Table *schema.Table
	// Alias is the name the table goes by in the query. Empty means the
	// table's own name.
	Alias string
	// Explicit marks aliases chosen by the caller. Explicitly aliased
	// instances are only reachable through bound fields.
	Explicit bool
}

// Auto returns an instance whose alias was generated by the query builder.
func Auto(t *schema.Table, alias string) Instance {
	return Instance{Table: t, Alias: alias}
}

// Named returns an instance with a caller-chosen alias.
func Named(t *schema.Table, alias string) Instance {
	return Instance{Table: t, Alias: alias, Explicit: true}
}

// Name returns the alias, or the table name when no alias is set.
func (i Instance) Name() string {
	if i.Alias != "" {
		return i.Alias
	}
	return i.Table.Name()
}

// Context is the resolution scope of a single query level.
type Context struct {
	instances []Instance
	// aliases maps Table.ID() to the alias names of that table at this
	// level, in instance order, without duplicates.
	aliases   map[string][]string
	parent    *Context
	maxFields int

	// root only
	dialect   Dialect
	schemaMap map[string]string
}

// New returns a root context for a query over instances.
func New(dialect Dialect, instances ...Instance) *Context {
	c := newContext(nil, instances)
	c.dialect = dialect
	return c
}

// NewChild returns a context for a subquery nested inside parent.
// A nil parent yields a SQLite root.
func NewChild(parent *Context, instances ...Instance) *Context {
	if parent == nil {
		return New(SQLite, instances...)
	}
	return newContext(parent, instances)
}

func newContext(parent *Context, instances []Instance) *Context {
	c := &Context{
		instances: slices.Clone(instances),
		aliases:   make(map[string][]string),
		parent:    parent,
		maxFields: Unlimited,
	}
	for _, inst := range c.instances {
		if inst.Table == nil {
			continue
		}
		id := inst.Table.ID()
		if !slices.Contains(c.aliases[id], inst.Name()) {
			c.aliases[id] = append(c.aliases[id], inst.Name())
		}
	}
	return c
}

// clone returns a shallow copy. The instance slice and alias map are never
// written after construction, so sharing them is safe.
func (c *Context) clone() *Context {
	cp := *c
	return &cp
}

// WithMaxFields returns a copy of c that allows at most n output columns.
func (c *Context) WithMaxFields(n int) *Context {
	cp := c.clone()
	cp.maxFields = n
	return cp
}

// WithSchemaMap returns a copy of the root context that renames schemas when
// formatting full table names. Must be applied before children are derived.
func (c *Context) WithSchemaMap(m map[string]string) *Context {
	cp := c.clone()
	cp.schemaMap = maps.Clone(m)
	return cp
}

// MaxFields returns the output-column cap of this level.
func (c *Context) MaxFields() int { return c.maxFields }

// Parent returns the enclosing context, nil for the root.
func (c *Context) Parent() *Context { return c.parent }

// InInnerQuery reports whether c belongs to a nested query.
func (c *Context) InInnerQuery() bool { return c.parent != nil }

// Root returns the outermost context of the chain.
func (c *Context) Root() *Context {
	for c.parent != nil {
		c = c.parent
	}
	return c
}

// Depth is 0 for the root and increases by one per nesting level.
func (c *Context) Depth() int {
	d := 0
	for p := c.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Dialect returns the dialect of the root context.
func (c *Context) Dialect() Dialect { return c.Root().dialect }

// Instances returns the instances of this level only.
func (c *Context) Instances() []Instance { return slices.Clone(c.instances) }

// Aliases returns the alias names registered for t at this level only.
func (c *Context) Aliases(t *schema.Table) []string {
	if t == nil {
		return nil
	}
	return slices.Clone(c.aliases[t.ID()])
}

// FullTableName formats t as schema, separator, table name, applying the
// root's schema remapping.
func (c *Context) FullTableName(t *schema.Table) string {
	root := c.Root()
	s := t.Schema()
	if s == "" {
		return t.Name()
	}
	if mapped, ok := root.schemaMap[s]; ok {
		s = mapped
	}
	return s + root.dialect.SchemaSeparator() + t.Name()
}

// Deref resolves f to the qualified column text to emit.
func (c *Context) Deref(f schema.Field) (string, error) {
	if f.IsBound() {
		return f.String(), nil
	}

	var inScope []string
	var candidates []Instance
	for level := c; level != nil; level = level.parent {
		for _, inst := range level.instances {
			if inst.Table == nil {
				continue
			}
			inScope = append(inScope, inst.Table.ID())
			if !inst.Explicit && f.Table() != nil && inst.Table == f.Table() {
				candidates = append(candidates, inst)
			}
		}
	}

	switch len(candidates) {
	case 0:
		return "", &FieldNotFoundError{Field: f.String(), Tables: inScope}
	case 1:
		return candidates[0].Name() + "." + f.Name(), nil
	default:
		conflicts := make([]string, len(candidates))
		for i, inst := range candidates {
			conflicts[i] = inst.Table.ID() + " " + inst.Name()
		}
		return "", &AmbiguousFieldError{Field: f.String(), Tables: conflicts}
	}
}
