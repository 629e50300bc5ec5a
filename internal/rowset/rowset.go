// Package rowset holds materialized rows for in-memory predicate evaluation.
//
// Rows come from YAML documents, Parquet files or database result sets and
// are filtered with the same conditions that render to SQL.
package rowset

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bebedizo/DKO/internal/cond"
	"github.com/bebedizo/DKO/internal/schema"
)

// Record is one row keyed by column name. Keys may be qualified
// ("item.listprice", "i2.listprice") or bare ("listprice").
type Record map[string]any

// Get returns the value of f: bound fields look up "alias.column", unbound
// fields "table.column", and both fall back to the bare column name.
// Missing keys read as nil.
func (r Record) Get(f schema.Field) any {
	if v, ok := r[f.String()]; ok {
		return v
	}
	if f.IsBound() && f.Table() != nil {
		if v, ok := r[f.Table().Name()+"."+f.Name()]; ok {
			return v
		}
	}
	return r[f.Name()]
}

var _ cond.Row = Record(nil)

// Filter returns the records matching c, in input order. With strict set,
// conditions that would query the database (exists) are rejected instead of
// executed. The first evaluation error aborts the filter.
func Filter(ctx context.Context, rows []Record, c cond.Condition, strict bool) ([]Record, error) {
	out := make([]Record, 0, len(rows))
	for i, r := range rows {
		var ok bool
		var err error
		if strict {
			ok, err = cond.MatchStrict(c, r)
		} else {
			ok, err = cond.MatchContext(ctx, c, r)
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Scan reads every remaining row of rows. keys name the columns in order;
// without keys the driver's column names are used. []byte values are
// returned as strings.
func Scan(rows *sqlx.Rows, keys ...string) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	if len(keys) == 0 {
		keys = cols
	}
	if len(keys) != len(cols) {
		return nil, fmt.Errorf("scan: %d keys for %d columns", len(keys), len(cols))
	}

	records := []Record{}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec := make(Record, len(cols))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[keys[i]] = v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}
