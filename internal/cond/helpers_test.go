package cond

import (
	"context"
	"errors"
	"sync"

	"github.com/bebedizo/DKO/internal/schema"
	"github.com/bebedizo/DKO/internal/scope"
)

var (
	item     = schema.NewTable("petstore", "item", "itemid", "productid", "listprice", "supplier", "status")
	supplier = schema.NewTable("petstore", "supplier", "suppid", "name", "status")
	product  = schema.NewTable("petstore", "product", "productid", "name")

	itemID       = item.Field("itemid")
	itemPrice    = item.Field("listprice")
	itemSupplier = item.Field("supplier")
	itemStatus   = item.Field("status")
	suppID       = supplier.Field("suppid")
	suppStatus   = supplier.Field("status")
)

// itemContext is the context of "select ... from petstore.item item".
func itemContext() *scope.Context {
	return scope.New(scope.SQLite, scope.Auto(item, "item"))
}

func supplierInstance() scope.Instance {
	return scope.Auto(supplier, "supplier")
}

// row is a Row keyed by column name.
type row map[string]any

func (r row) Get(f schema.Field) any { return r[f.Name()] }

// fakeSub is a one-table subquery that renders
// "select <col> from <table> <alias> [where <cond>]" against the context it
// is given, and records the column cap it saw.
type fakeSub struct {
	from  scope.Instance
	col   schema.Field
	where Condition

	count    int
	countErr error
	panics   bool

	mu      sync.Mutex
	seenMax int
}

func (f *fakeSub) Instances() []scope.Instance { return []scope.Instance{f.from} }

func (f *fakeSub) Render(ctx *scope.Context) (string, []any, error) {
	f.mu.Lock()
	f.seenMax = ctx.MaxFields()
	f.mu.Unlock()
	col, err := ctx.Deref(f.col)
	if err != nil {
		return "", nil, err
	}
	text := "select " + col + " from " + ctx.FullTableName(f.from.Table) + " " + f.from.Name()
	if f.where == nil {
		return text, nil, nil
	}
	w, args, err := Render(f.where, ctx)
	if err != nil {
		return "", nil, err
	}
	return text + " where " + w, args, nil
}

func (f *fakeSub) Count(context.Context) (int, error) {
	if f.panics {
		panic("driver exploded")
	}
	return f.count, f.countErr
}

// renderOnly is a Subquery without Count.
type renderOnly struct{ sub *fakeSub }

func (r renderOnly) Instances() []scope.Instance { return r.sub.Instances() }
func (r renderOnly) Render(ctx *scope.Context) (string, []any, error) {
	return r.sub.Render(ctx)
}

var errBoom = errors.New("boom")
