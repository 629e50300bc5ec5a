// Package filterdef decodes declarative filter documents into tables,
// queries and condition trees.
//
// A document is YAML or CUE with the same shape:
//
//	dialect: sqlite
//	tables:
//	  - {schema: petstore, name: item, columns: [itemid, listprice, status]}
//	query:
//	  from: [{table: item}]
//	  where:
//	    and:
//	      - between: {field: item.listprice, low: 2, high: 5}
//	      - in: {field: item.status, values: [P, S]}
//
// Fields are written table.column for an unbound field or
// table.column@alias for a field bound to an alias. Each condition node has
// exactly one key.
package filterdef

// Document is a decoded filter document.
type Document struct {
	Dialect   string            `yaml:"dialect" json:"dialect,omitempty"`
	SchemaMap map[string]string `yaml:"schema_map" json:"schema_map,omitempty"`
	Tables    []TableDef        `yaml:"tables" json:"tables"`
	Query     QueryDef          `yaml:"query" json:"query"`
}

// TableDef declares one table.
type TableDef struct {
	Schema  string   `yaml:"schema" json:"schema,omitempty"`
	Name    string   `yaml:"name" json:"name"`
	Columns []string `yaml:"columns" json:"columns"`
}

// QueryDef is a select statement.
type QueryDef struct {
	From    []SourceDef `yaml:"from" json:"from"`
	Joins   []JoinDef   `yaml:"joins" json:"joins,omitempty"`
	Columns []string    `yaml:"columns" json:"columns,omitempty"`
	Where   *Node       `yaml:"where" json:"where,omitempty"`
	// OrderBy terms are fields with an optional " desc" suffix.
	OrderBy []string `yaml:"order_by" json:"order_by,omitempty"`
	Limit   int      `yaml:"limit" json:"limit,omitempty"`
}

// SourceDef is a table in the from list. An empty alias means an automatic
// one.
type SourceDef struct {
	Table string `yaml:"table" json:"table"`
	Alias string `yaml:"alias" json:"alias,omitempty"`
}

// JoinDef is a joined table. Kind is inner (default), left or cross.
type JoinDef struct {
	Kind  string `yaml:"kind" json:"kind,omitempty"`
	Table string `yaml:"table" json:"table"`
	Alias string `yaml:"alias" json:"alias,omitempty"`
	On    *Node  `yaml:"on" json:"on,omitempty"`
}

// Node is one condition. Exactly one field is set.
type Node struct {
	And       []Node      `yaml:"and" json:"and,omitempty"`
	Or        []Node      `yaml:"or" json:"or,omitempty"`
	Not       *Node       `yaml:"not" json:"not,omitempty"`
	Literal   *string     `yaml:"literal" json:"literal,omitempty"`
	Const     *bool       `yaml:"const" json:"const,omitempty"`
	Cmp       *CmpDef     `yaml:"cmp" json:"cmp,omitempty"`
	Between   *BetweenDef `yaml:"between" json:"between,omitempty"`
	In        *InDef      `yaml:"in" json:"in,omitempty"`
	IsNull    string      `yaml:"is_null" json:"is_null,omitempty"`
	IsNotNull string      `yaml:"is_not_null" json:"is_not_null,omitempty"`
	Exists    *QueryDef   `yaml:"exists" json:"exists,omitempty"`
	NotExists *QueryDef   `yaml:"not_exists" json:"not_exists,omitempty"`
}

// CmpDef compares a field with one of: a literal value, a second field, a
// subquery or a function call. With none of them set the value is null.
type CmpDef struct {
	Field  string    `yaml:"field" json:"field"`
	Op     string    `yaml:"op" json:"op"`
	Value  any       `yaml:"value" json:"value,omitempty"`
	Field2 string    `yaml:"field2" json:"field2,omitempty"`
	Query  *QueryDef `yaml:"query" json:"query,omitempty"`
	Call   *CallDef  `yaml:"call" json:"call,omitempty"`
}

// BetweenDef is "field between low and high". A missing bound is open.
type BetweenDef struct {
	Field string `yaml:"field" json:"field"`
	Low   any    `yaml:"low" json:"low,omitempty"`
	High  any    `yaml:"high" json:"high,omitempty"`
}

// InDef tests membership in literal values or in a single-column subquery.
type InDef struct {
	Field  string    `yaml:"field" json:"field"`
	Values []any     `yaml:"values" json:"values,omitempty"`
	Query  *QueryDef `yaml:"query" json:"query,omitempty"`
	Negate bool      `yaml:"negate" json:"negate,omitempty"`
}

// CallDef is a SQL function call. Args are ArgDefs.
type CallDef struct {
	Name string   `yaml:"name" json:"name"`
	Args []ArgDef `yaml:"args" json:"args,omitempty"`
}

// ArgDef is a function argument: a field, a nested call, raw SQL or a
// literal value.
type ArgDef struct {
	Field string   `yaml:"field" json:"field,omitempty"`
	Call  *CallDef `yaml:"call" json:"call,omitempty"`
	Raw   string   `yaml:"raw" json:"raw,omitempty"`
	Value any      `yaml:"value" json:"value,omitempty"`
}
