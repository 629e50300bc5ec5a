// Package schema describes the table and column metadata that predicates are
// built against.
//
// A *Table is the identity of a table type: two fields belong to the same
// table iff their Table pointers are equal. Tables are normally declared once
// as package-level variables and shared by every query in the process.
//
// Example:
//
//	var Item = schema.NewTable("petstore", "item", "itemid", "productid", "listprice")
//
//	price := Item.Field("listprice")          // unbound: resolved per query
//	other := Item.Field("listprice").As("i2") // bound to alias i2
package schema

import (
	"fmt"
	"slices"
)

// Table is the metadata of one database table.
//
// Table values are immutable after NewTable and safe for concurrent use.
type Table struct {
	schema  string
	name    string
	columns []string
}

// NewTable declares a table. schemaName may be empty.
func NewTable(schemaName, name string, columns ...string) *Table {
	return &Table{
		schema:  schemaName,
		name:    name,
		columns: slices.Clone(columns),
	}
}

// Schema returns the schema name ("" when the table is unqualified).
func (t *Table) Schema() string { return t.schema }

// Name returns the bare table name.
func (t *Table) Name() string { return t.name }

// ID returns the schema-qualified identity of the table, e.g. "petstore.item".
// Used as the self-join lookup key.
func (t *Table) ID() string {
	if t.schema == "" {
		return t.name
	}
	return t.schema + "." + t.name
}

// Columns returns a copy of the declared column names in declaration order.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// HasColumn reports whether name is a declared column.
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.columns, name)
}

// Field returns an unbound reference to column name.
func (t *Table) Field(name string) Field {
	return Field{table: t, name: name}
}

// Fields returns unbound references to every declared column.
func (t *Table) Fields() []Field {
	fields := make([]Field, len(t.columns))
	for i, c := range t.columns {
		fields[i] = t.Field(c)
	}
	return fields
}

func (t *Table) String() string { return t.ID() }

// Field identifies a column of a table, optionally bound to an explicit alias.
//
// The zero Field has no owning table and never resolves.
type Field struct {
	table *Table
	name  string
	alias string
}

// Name returns the column name.
func (f Field) Name() string { return f.name }

// Table returns the owning table, nil for the zero Field.
func (f Field) Table() *Table { return f.table }

// Alias returns the explicit alias, "" when unbound.
func (f Field) Alias() string { return f.alias }

// IsBound reports whether the field is qualified by an explicit alias.
func (f Field) IsBound() bool { return f.alias != "" }

// As returns a copy of f bound to alias.
func (f Field) As(alias string) Field {
	f.alias = alias
	return f
}

// Unbound returns a copy of f without its alias.
func (f Field) Unbound() Field {
	f.alias = ""
	return f
}

// SameField reports whether f and o name the same column of the same table,
// ignoring aliases.
func (f Field) SameField(o Field) bool {
	return f.table == o.table && f.name == o.name
}

// String returns alias.column for bound fields and table.column otherwise.
func (f Field) String() string {
	if f.alias != "" {
		return f.alias + "." + f.name
	}
	if f.table == nil {
		return f.name
	}
	return fmt.Sprintf("%s.%s", f.table.name, f.name)
}
