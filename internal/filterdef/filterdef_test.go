package filterdef

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bebedizo/DKO/internal/cond"
	"github.com/bebedizo/DKO/internal/rowset"
	"github.com/bebedizo/DKO/internal/scope"
)

const suppliedItemsSQL = "select item.itemid from petstore.item item where " +
	"(item.listprice between ? and ? and item.supplier in " +
	"(select supplier.suppid from petstore.supplier supplier where supplier.status = ?)) " +
	"order by item.listprice desc limit 3"

const tablesYAML = `
tables:
  - {schema: petstore, name: item, columns: [itemid, productid, listprice, supplier, status]}
  - {schema: petstore, name: supplier, columns: [suppid, name, status]}
`

// buildYAML parses body (appended to the petstore tables) and builds it.
func buildYAML(t *testing.T, body string) (*Built, error) {
	t.Helper()
	doc, err := Parse([]byte(tablesYAML+body), FormatYAML, "inline.yaml")
	require.NoError(t, err)
	return Build(doc, nil)
}

func renderYAML(t *testing.T, body string) (string, []any) {
	t.Helper()
	b, err := buildYAML(t, body)
	require.NoError(t, err)
	sql, args, err := b.SQL()
	require.NoError(t, err)
	return sql, args
}

func jsonArgs(t *testing.T, args []any) string {
	t.Helper()
	data, err := json.Marshal(args)
	require.NoError(t, err)
	return string(data)
}

func TestLoad_YAMLAndCUEAgree(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewOsFs())

	for _, path := range []string{"testdata/supplied_items.yaml", "testdata/supplied_items.cue"} {
		t.Run(path, func(t *testing.T) {
			doc, err := Load(fs, path)
			require.NoError(t, err)

			b, err := Build(doc, nil)
			require.NoError(t, err)
			assert.Equal(t, scope.SQLite, b.Dialect)
			assert.Len(t, b.Catalog.Tables(), 2)

			sql, args, err := b.SQL()
			require.NoError(t, err)
			assert.Equal(t, suppliedItemsSQL, sql)
			assert.Equal(t, `[2,5,"AC"]`, jsonArgs(t, args))
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "doc.json", []byte("{}"), 0o644))

	_, err := Load(fs, "doc.json")
	require.Error(t, err)
	assert.True(t, IsDefinitionError(err))
	assert.Contains(t, err.Error(), "[E200]")

	_, err = Load(fs, "missing.yaml")
	require.Error(t, err)
	assert.False(t, IsDefinitionError(err))
	assert.Contains(t, err.Error(), "read missing.yaml")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
		want   string
	}{
		{"empty yaml", FormatYAML, "", "empty document"},
		{"unknown yaml key", FormatYAML, "dialect: sqlite\nflavour: mint\n", "flavour"},
		{"bad cue syntax", FormatCUE, "query: {", ""},
		{"incomplete cue", FormatCUE, "dialect: string\n", ""},
		{"unknown format", Format(9), "x", "unknown format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format, "doc")
			require.Error(t, err)

			var de *DefinitionError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, ErrCodeParse, de.Code)
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestParse_CUEErrorHasPosition(t *testing.T) {
	_, err := Parse([]byte("dialect: \"sqlite\"\ndialect: \"postgres\"\n"), FormatCUE, "conflict.cue")
	require.Error(t, err)

	var de *DefinitionError
	require.True(t, errors.As(err, &de))
	assert.True(t, de.Pos.IsValid())
	assert.Contains(t, err.Error(), "conflict.cue:")
}

func TestBuild_Conditions(t *testing.T) {
	tests := []struct {
		name  string
		where string
		sql   string
		args  string
	}{
		{
			name:  "default op is equality",
			where: "{cmp: {field: item.status, value: P}}",
			sql:   "item.status = ?",
			args:  `["P"]`,
		},
		{
			name:  "null value",
			where: "{cmp: {field: item.supplier, op: '='}}",
			sql:   "item.supplier is null",
			args:  `[]`,
		},
		{
			name:  "not equal to null",
			where: "{cmp: {field: item.supplier, op: '!='}}",
			sql:   "item.supplier is not null",
			args:  `[]`,
		},
		{
			name:  "field operand",
			where: "{cmp: {field: item.itemid, op: '<>', field2: item.productid}}",
			sql:   "item.itemid <> item.productid",
			args:  `[]`,
		},
		{
			name:  "function operand",
			where: "{cmp: {field: item.listprice, op: '>', call: {name: coalesce, args: [{field: item.listprice}, {value: 0}]}}}",
			sql:   "item.listprice > coalesce(item.listprice, ?)",
			args:  `[0]`,
		},
		{
			name:  "nested call and raw argument",
			where: "{cmp: {field: item.listprice, op: '<', call: {name: round, args: [{call: {name: abs, args: [{raw: current_price}]}}, {value: 2}]}}}",
			sql:   "item.listprice < round(abs(current_price), ?)",
			args:  `[2]`,
		},
		{
			name:  "cmp with in and a single value",
			where: "{cmp: {field: item.supplier, op: in, value: 1}}",
			sql:   "item.supplier in (?)",
			args:  `[1]`,
		},
		{
			name:  "cmp with not in and a list",
			where: "{cmp: {field: item.status, op: NOT IN, value: [P, S]}}",
			sql:   "item.status not in (?,?)",
			args:  `["P","S"]`,
		},
		{
			name:  "cmp with in and a field",
			where: "{cmp: {field: item.supplier, op: in, field2: item.listprice}}",
			sql:   "item.supplier in (item.listprice)",
			args:  `[]`,
		},
		{
			name:  "in values",
			where: "{in: {field: item.status, values: [P, S]}}",
			sql:   "item.status in (?,?)",
			args:  `["P","S"]`,
		},
		{
			name:  "empty in",
			where: "{in: {field: item.status, values: []}}",
			sql:   "item.status in (null)",
			args:  `[]`,
		},
		{
			name:  "negated in",
			where: "{in: {field: item.status, values: [S], negate: true}}",
			sql:   "item.status not in (?)",
			args:  `["S"]`,
		},
		{
			name:  "null tests",
			where: "{or: [{is_null: item.supplier}, {is_not_null: item.status}]}",
			sql:   "(item.supplier is null or item.status is not null)",
			args:  `[]`,
		},
		{
			name:  "not and literal",
			where: "{not: {literal: 'item.listprice > 10'}}",
			sql:   "not (item.listprice > 10)",
			args:  `[]`,
		},
		{
			name:  "const",
			where: "{and: [{const: true}, {const: false}]}",
			sql:   "(1=1 and 1=0)",
			args:  `[]`,
		},
		{
			name:  "not exists",
			where: "{not_exists: {from: [{table: supplier, alias: s}], columns: [supplier.suppid@s], where: {cmp: {field: supplier.suppid@s, field2: item.supplier}}}}",
			sql:   "not exists (select s.suppid from petstore.supplier s where s.suppid = item.supplier)",
			args:  `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := buildYAML(t, "query:\n  from: [{table: item}]\n  columns: [item.itemid]\n  where: "+tt.where+"\n")
			require.NoError(t, err)

			sql, args, err := cond.Render(b.Condition(), b.Query.RootContext())
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, jsonArgs(t, args))
		})
	}
}

func TestBuild_SelfJoinWithAliases(t *testing.T) {
	sql, args := renderYAML(t, `
query:
  from: [{table: petstore.item}]
  joins:
    - {table: item, on: {cmp: {field: item.productid, field2: item.productid}}}
  columns: [item.itemid@item, item.itemid@item_2]
  where: {cmp: {field: item.itemid@item, op: '<', field2: item.itemid@item_2}}
`)
	assert.Equal(t, "select item.itemid, item_2.itemid from petstore.item item "+
		"join petstore.item item_2 on item.productid = item_2.productid "+
		"where item.itemid < item_2.itemid", sql)
	assert.Empty(t, args)
}

func TestBuild_LeftAndCrossJoins(t *testing.T) {
	sql, _ := renderYAML(t, `
query:
  from: [{table: item, alias: i}]
  joins:
    - {kind: left, table: supplier, alias: s, on: {cmp: {field: supplier.suppid@s, field2: item.supplier@i}}}
    - {kind: cross, table: supplier, alias: t}
  columns: [item.itemid@i, supplier.name@s]
  order_by: [item.itemid@i asc]
`)
	assert.Equal(t, "select i.itemid, s.name from petstore.item i "+
		"left join petstore.supplier s on s.suppid = i.supplier "+
		"cross join petstore.supplier t order by i.itemid", sql)
}

func TestBuild_DialectAndSchemaMap(t *testing.T) {
	sql, args := renderYAML(t, `
dialect: sqlserver
schema_map: {petstore: shop}
query:
  from: [{table: item}]
  columns: [item.itemid]
  where: {cmp: {field: item.listprice, op: '>=', value: 5}}
  limit: 2
`)
	assert.Equal(t, "select top 2 item.itemid from shop.dbo.item item where item.listprice >= ?", sql)
	assert.Equal(t, `[5]`, jsonArgs(t, args))
}

type stubQuerier struct {
	dialect scope.Dialect
}

func (q stubQuerier) Query(context.Context, string, ...any) (*sqlx.Rows, error) {
	return nil, errors.New("no database")
}

func (q stubQuerier) Dialect() scope.Dialect { return q.dialect }

func TestBuild_DialectFromQuerier(t *testing.T) {
	doc, err := Parse([]byte(tablesYAML+"query: {from: [{table: item}]}\n"), FormatYAML, "q.yaml")
	require.NoError(t, err)

	b, err := Build(doc, stubQuerier{dialect: scope.Postgres})
	require.NoError(t, err)
	assert.Equal(t, scope.Postgres, b.Dialect)
	assert.Equal(t, scope.Postgres, b.Query.Dialect())
}

func TestBuild_ConditionMatchesRows(t *testing.T) {
	b, err := buildYAML(t, `
query:
  from: [{table: item}]
  where:
    and:
      - between: {field: item.listprice, low: 2, high: 5}
      - in: {field: item.status, values: [P, S]}
`)
	require.NoError(t, err)

	rows := []rowset.Record{
		{"item.itemid": "EST-1", "item.listprice": 16.5, "item.status": "P"},
		{"item.itemid": "EST-2", "item.listprice": 2.0, "item.status": "P"},
		{"item.itemid": "EST-3", "item.listprice": 4.0, "item.status": "S"},
		{"item.itemid": "EST-5", "item.listprice": 5.0, "item.status": "S"},
	}
	got, err := rowset.Filter(t.Context(), rows, b.Condition(), true)
	require.NoError(t, err)

	var ids []any
	for _, r := range got {
		ids = append(ids, r["item.itemid"])
	}
	assert.Equal(t, []any{"EST-2", "EST-3"}, ids)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
		path string
	}{
		{
			name: "bad dialect",
			doc:  "dialect: oracle\nquery: {from: [{table: item}]}\n",
			code: ErrCodeInvalidDialect,
			path: "dialect",
		},
		{
			name: "no tables in query",
			doc:  "query: {columns: [item.itemid]}\n",
			code: ErrCodeInvalidQuery,
			path: "query.from",
		},
		{
			name: "cmp in without operand",
			doc:  "query: {from: [{table: item}], where: {cmp: {field: item.status, op: In}}}\n",
			code: ErrCodeInvalidNode,
			path: "query.where.cmp",
		},
		{
			name: "unknown table",
			doc:  "query: {from: [{table: order}]}\n",
			code: ErrCodeUnknownTable,
			path: "query.from[0].table",
		},
		{
			name: "unknown column",
			doc:  "query: {from: [{table: item}], columns: [item.colour]}\n",
			code: ErrCodeUnknownColumn,
			path: "query.columns[0]",
		},
		{
			name: "malformed field",
			doc:  "query: {from: [{table: item}], where: {is_null: itemid}}\n",
			code: ErrCodeInvalidField,
			path: "query.where.is_null",
		},
		{
			name: "empty alias",
			doc:  "query: {from: [{table: item}], where: {is_null: item.itemid@}}\n",
			code: ErrCodeInvalidField,
			path: "query.where.is_null",
		},
		{
			name: "node with two keys",
			doc:  "query: {from: [{table: item}], where: {is_null: item.itemid, const: true}}\n",
			code: ErrCodeInvalidNode,
			path: "query.where",
		},
		{
			name: "empty node",
			doc:  "query: {from: [{table: item}], where: {}}\n",
			code: ErrCodeInvalidNode,
			path: "query.where",
		},
		{
			name: "nested path",
			doc:  "query: {from: [{table: item}], where: {and: [{const: true}, {between: {field: item.price}}]}}\n",
			code: ErrCodeUnknownColumn,
			path: "query.where.and[1].between.field",
		},
		{
			name: "two comparison operands",
			doc:  "query: {from: [{table: item}], where: {cmp: {field: item.status, value: P, field2: item.itemid}}}\n",
			code: ErrCodeInvalidNode,
			path: "query.where.cmp",
		},
		{
			name: "in with values and query",
			doc:  "query: {from: [{table: item}], where: {in: {field: item.supplier, values: [1], query: {from: [{table: supplier}]}}}}\n",
			code: ErrCodeInvalidNode,
			path: "query.where.in",
		},
		{
			name: "argument with two kinds",
			doc:  "query: {from: [{table: item}], where: {cmp: {field: item.listprice, call: {name: abs, args: [{raw: x, value: 1}]}}}}\n",
			code: ErrCodeInvalidNode,
			path: "query.where.cmp.call.args[0]",
		},
		{
			name: "call without name",
			doc:  "query: {from: [{table: item}], where: {cmp: {field: item.listprice, call: {args: []}}}}\n",
			code: ErrCodeInvalidNode,
			path: "query.where.cmp.call.name",
		},
		{
			name: "bad join kind",
			doc:  "query: {from: [{table: item}], joins: [{kind: outer, table: supplier}]}\n",
			code: ErrCodeInvalidQuery,
			path: "query.joins[0].kind",
		},
		{
			name: "cross join with condition",
			doc:  "query: {from: [{table: item}], joins: [{kind: cross, table: supplier, on: {const: true}}]}\n",
			code: ErrCodeInvalidQuery,
			path: "query.joins[0].on",
		},
		{
			name: "negative limit",
			doc:  "query: {from: [{table: item}], limit: -1}\n",
			code: ErrCodeInvalidQuery,
			path: "query.limit",
		},
		{
			name: "error inside subquery",
			doc:  "query: {from: [{table: item}], where: {exists: {from: [{table: supplier}], where: {is_null: supplier.colour}}}}\n",
			code: ErrCodeUnknownColumn,
			path: "query.where.exists.where.is_null",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildYAML(t, tt.doc)
			require.Error(t, err)

			var de *DefinitionError
			require.True(t, errors.As(err, &de), "got %T: %v", err, err)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.path, de.Path)
		})
	}
}

func TestBuild_NilDocument(t *testing.T) {
	_, err := Build(nil, nil)
	require.Error(t, err)
	assert.True(t, IsDefinitionError(err))
}

func TestCatalog(t *testing.T) {
	cat, err := NewCatalog([]TableDef{
		{Schema: "petstore", Name: "item", Columns: []string{"itemid"}},
		{Schema: "archive", Name: "item", Columns: []string{"itemid"}},
		{Name: "supplier", Columns: []string{"suppid"}},
	})
	require.NoError(t, err)

	tbl, err := cat.Table("archive.item")
	require.NoError(t, err)
	assert.Equal(t, "archive", tbl.Schema())

	tbl, err = cat.Table("supplier")
	require.NoError(t, err)
	assert.Equal(t, "supplier", tbl.ID())

	_, err = cat.Table("item")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "several schemas")

	_, err = cat.Table("product")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table")
}

func TestCatalog_InvalidDeclarations(t *testing.T) {
	tests := []struct {
		name string
		defs []TableDef
		path string
	}{
		{"missing name", []TableDef{{Columns: []string{"a"}}}, "tables[0]"},
		{"no columns", []TableDef{{Name: "item"}}, "tables[0]"},
		{"duplicate", []TableDef{
			{Schema: "s", Name: "item", Columns: []string{"a"}},
			{Schema: "s", Name: "item", Columns: []string{"b"}},
		}, "tables[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.defs)
			var de *DefinitionError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, ErrCodeInvalidTable, de.Code)
			assert.Equal(t, tt.path, de.Path)
		})
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"a.yaml", FormatYAML, true},
		{"a.YML", FormatYAML, true},
		{"dir/a.cue", FormatCUE, true},
		{"a.toml", 0, false},
	}
	for _, tt := range tests {
		got, err := FormatFor(tt.path)
		if !tt.ok {
			assert.Error(t, err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestDefinitionError_Format(t *testing.T) {
	assert.Equal(t, "[E204] query.where: boom",
		(&DefinitionError{Code: ErrCodeInvalidNode, Path: "query.where", Message: "boom"}).Error())
	assert.Equal(t, "[E200] boom",
		(&DefinitionError{Code: ErrCodeParse, Message: "boom"}).Error())
}
