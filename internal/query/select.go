package query

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/bebedizo/DKO/internal/cond"
	"github.com/bebedizo/DKO/internal/rowset"
	"github.com/bebedizo/DKO/internal/schema"
	"github.com/bebedizo/DKO/internal/scope"
)

// Querier runs rendered SQL. The SQL uses ? placeholders; implementations
// translate them for their driver. *store.Store implements it.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	Dialect() scope.Dialect
}

// JoinKind selects how a table enters the query.
type JoinKind int

const (
	// FromList tables are listed comma-separated after "from".
	FromList JoinKind = iota
	InnerJoin
	LeftJoin
	CrossJoin
)

func (k JoinKind) keyword() string {
	switch k {
	case InnerJoin:
		return "join"
	case LeftJoin:
		return "left join"
	case CrossJoin:
		return "cross join"
	default:
		return ","
	}
}

// source is one table of the query with the way it is joined.
type source struct {
	inst scope.Instance
	kind JoinKind
	on   cond.Condition
}

// Order is one order by term.
type Order struct {
	Field schema.Field
	Desc  bool
}

// Select is a select statement under construction.
type Select struct {
	sources   []source
	columns   []schema.Field
	where     []cond.Condition
	orderBy   []Order
	limit     int
	schemaMap map[string]string
	querier   Querier
}

// From starts a query over t with an automatic alias.
func From(t *schema.Table) *Select {
	return (&Select{}).From(t)
}

// FromAs starts a query over t with an explicit alias.
func FromAs(t *schema.Table, alias string) *Select {
	return (&Select{}).FromAs(t, alias)
}

func (s *Select) clone() *Select {
	cp := *s
	cp.sources = slices.Clone(s.sources)
	cp.columns = slices.Clone(s.columns)
	cp.where = slices.Clone(s.where)
	cp.orderBy = slices.Clone(s.orderBy)
	return &cp
}

// autoAlias returns the first unused name among t's name, name_2, name_3...
func (s *Select) autoAlias(t *schema.Table) string {
	taken := make(map[string]bool, len(s.sources))
	for _, src := range s.sources {
		taken[src.inst.Name()] = true
	}
	alias := t.Name()
	for n := 2; taken[alias]; n++ {
		alias = t.Name() + "_" + strconv.Itoa(n)
	}
	return alias
}

func (s *Select) add(t *schema.Table, alias string, kind JoinKind, on cond.Condition) *Select {
	cp := s.clone()
	inst := scope.Named(t, alias)
	if alias == "" {
		inst = scope.Auto(t, s.autoAlias(t))
	}
	cp.sources = append(cp.sources, source{inst: inst, kind: kind, on: on})
	return cp
}

// From adds t to the from list.
func (s *Select) From(t *schema.Table) *Select { return s.add(t, "", FromList, nil) }

// FromAs adds t to the from list under an explicit alias.
func (s *Select) FromAs(t *schema.Table, alias string) *Select {
	return s.add(t, alias, FromList, nil)
}

// Join inner-joins t on the given condition.
func (s *Select) Join(t *schema.Table, on cond.Condition) *Select {
	return s.add(t, "", InnerJoin, on)
}

// JoinAs inner-joins t under an explicit alias.
func (s *Select) JoinAs(t *schema.Table, alias string, on cond.Condition) *Select {
	return s.add(t, alias, InnerJoin, on)
}

// LeftJoin left-joins t on the given condition.
func (s *Select) LeftJoin(t *schema.Table, on cond.Condition) *Select {
	return s.add(t, "", LeftJoin, on)
}

// LeftJoinAs left-joins t under an explicit alias.
func (s *Select) LeftJoinAs(t *schema.Table, alias string, on cond.Condition) *Select {
	return s.add(t, alias, LeftJoin, on)
}

// Cross cross-joins t.
func (s *Select) Cross(t *schema.Table) *Select { return s.add(t, "", CrossJoin, nil) }

// CrossAs cross-joins t under an explicit alias.
func (s *Select) CrossAs(t *schema.Table, alias string) *Select {
	return s.add(t, alias, CrossJoin, nil)
}

// Where adds conditions. All conditions of a query are ANDed.
func (s *Select) Where(conds ...cond.Condition) *Select {
	cp := s.clone()
	for _, c := range conds {
		if c != nil {
			cp.where = append(cp.where, c)
		}
	}
	return cp
}

// Columns sets the output columns. Without it every column of every table
// is selected.
func (s *Select) Columns(fields ...schema.Field) *Select {
	cp := s.clone()
	cp.columns = slices.Clone(fields)
	return cp
}

// OrderBy appends ascending order terms.
func (s *Select) OrderBy(fields ...schema.Field) *Select {
	cp := s.clone()
	for _, f := range fields {
		cp.orderBy = append(cp.orderBy, Order{Field: f})
	}
	return cp
}

// OrderByDesc appends descending order terms.
func (s *Select) OrderByDesc(fields ...schema.Field) *Select {
	cp := s.clone()
	for _, f := range fields {
		cp.orderBy = append(cp.orderBy, Order{Field: f, Desc: true})
	}
	return cp
}

// Limit caps the number of rows. Zero or less removes the cap.
func (s *Select) Limit(n int) *Select {
	cp := s.clone()
	cp.limit = max(n, 0)
	return cp
}

// MapSchemas renames schemas when the query is rendered as an outer query,
// e.g. {"petstore": "petstore_test"}.
func (s *Select) MapSchemas(m map[string]string) *Select {
	cp := s.clone()
	cp.schemaMap = maps.Clone(m)
	return cp
}

// Use attaches the Querier that Count and Fetch run through.
func (s *Select) Use(q Querier) *Select {
	cp := s.clone()
	cp.querier = q
	return cp
}

// Instances returns the tables of the query in the order they were added.
func (s *Select) Instances() []scope.Instance {
	out := make([]scope.Instance, len(s.sources))
	for i, src := range s.sources {
		out[i] = src.inst
	}
	return out
}

// Condition returns the where clause as a single condition, True when the
// query has none.
func (s *Select) Condition() cond.Condition {
	if len(s.where) == 1 {
		return s.where[0]
	}
	return cond.And(s.where...)
}

// Dialect is the dialect of the attached Querier, SQLite without one.
func (s *Select) Dialect() scope.Dialect {
	if s.querier == nil {
		return scope.SQLite
	}
	return s.querier.Dialect()
}

// RootContext returns the resolution context the query renders against when
// it is the outermost query.
func (s *Select) RootContext() *scope.Context {
	ctx := scope.New(s.Dialect(), s.Instances()...)
	if len(s.schemaMap) > 0 {
		ctx = ctx.WithSchemaMap(s.schemaMap)
	}
	return ctx
}

// SQL renders the query as an outermost statement.
func (s *Select) SQL() (string, []any, error) {
	return s.Render(s.RootContext())
}

// Render renders the query against ctx, which must hold the query's own
// instances at its innermost level. Used directly when the query is nested
// inside a condition.
func (s *Select) Render(ctx *scope.Context) (string, []any, error) {
	st, err := s.compile(ctx)
	if err != nil {
		return "", nil, err
	}
	return st.text, st.args, nil
}

// statement is a rendered query with the row keys of its output columns.
type statement struct {
	text string
	args []any
	keys []string
}

func (s *Select) compile(ctx *scope.Context) (*statement, error) {
	if len(s.sources) == 0 {
		return nil, fmt.Errorf("select has no tables")
	}
	if s.sources[0].kind != FromList {
		return nil, fmt.Errorf("first table of a select cannot be joined")
	}

	cols, err := s.outputColumns(ctx)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	args := []any{}

	sb.WriteString("select ")
	if s.limit > 0 && ctx.Dialect() == scope.SQLServer {
		sb.WriteString("top " + strconv.Itoa(s.limit) + " ")
	}
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" from ")
	for i, src := range s.sources {
		if i > 0 {
			if src.kind == FromList {
				sb.WriteString(", ")
			} else {
				sb.WriteString(" " + src.kind.keyword() + " ")
			}
		}
		sb.WriteString(ctx.FullTableName(src.inst.Table) + " " + src.inst.Name())
		if src.on != nil && (src.kind == InnerJoin || src.kind == LeftJoin) {
			on, onArgs, err := cond.Render(src.on, ctx)
			if err != nil {
				return nil, fmt.Errorf("render join %s: %w", src.inst.Name(), err)
			}
			sb.WriteString(" on " + on)
			args = append(args, onArgs...)
		}
	}

	if len(s.where) > 0 {
		where, whereArgs, err := cond.Render(s.Condition(), ctx)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" where " + where)
		args = append(args, whereArgs...)
	}

	if len(s.orderBy) > 0 {
		terms := make([]string, len(s.orderBy))
		for i, o := range s.orderBy {
			col, err := ctx.Deref(o.Field)
			if err != nil {
				return nil, fmt.Errorf("order by: %w", err)
			}
			if o.Desc {
				col += " desc"
			}
			terms[i] = col
		}
		sb.WriteString(" order by " + strings.Join(terms, ", "))
	}

	if s.limit > 0 && ctx.Dialect() != scope.SQLServer {
		sb.WriteString(" limit " + strconv.Itoa(s.limit))
	}

	return &statement{text: sb.String(), args: args, keys: cols}, nil
}

// outputColumns resolves the select list. Explicit columns must fit the
// context's cap; the default list is truncated to it.
func (s *Select) outputColumns(ctx *scope.Context) ([]string, error) {
	limit := ctx.MaxFields()
	if len(s.columns) > 0 {
		if len(s.columns) > limit {
			return nil, &cond.SubqueryColumnCountExceededError{Max: limit, Got: len(s.columns)}
		}
		cols := make([]string, len(s.columns))
		for i, f := range s.columns {
			col, err := ctx.Deref(f)
			if err != nil {
				return nil, err
			}
			cols[i] = col
		}
		return cols, nil
	}

	var cols []string
	for _, src := range s.sources {
		for _, c := range src.inst.Table.Columns() {
			if len(cols) == limit {
				return cols, nil
			}
			cols = append(cols, src.inst.Name()+"."+c)
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("select over %s has no columns", s.sources[0].inst.Table.ID())
	}
	return cols, nil
}

// Count runs the query through its Querier and returns the number of rows it
// yields. It is what exists (...) uses when evaluated in memory.
func (s *Select) Count(ctx context.Context) (int, error) {
	if s.querier == nil {
		return 0, fmt.Errorf("count: no querier attached")
	}
	text, args, err := s.SQL()
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	rows, err := s.querier.Query(ctx, "select count(*) from ("+text+") q", args...)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("count: scan: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Fetch runs the query and returns its rows keyed by qualified column name,
// e.g. "item.listprice", so they can be matched in memory.
func (s *Select) Fetch(ctx context.Context) ([]rowset.Record, error) {
	if s.querier == nil {
		return nil, fmt.Errorf("fetch: no querier attached")
	}
	st, err := s.compile(s.RootContext())
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	rows, err := s.querier.Query(ctx, st.text, st.args...)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer rows.Close()

	records, err := rowset.Scan(rows, st.keys...)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return records, nil
}

var (
	_ cond.Subquery = (*Select)(nil)
	_ cond.Counter  = (*Select)(nil)
)
