package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/bebedizo/DKO/internal/filterdef"
	"github.com/bebedizo/DKO/internal/query"
	"github.com/bebedizo/DKO/internal/rowset"
	"github.com/bebedizo/DKO/internal/store"
)

// buildDocument loads the filter document at path. Without a querier the
// configured dialect applies to documents that do not name one.
func (o *RootOptions) buildDocument(path string, q query.Querier) (*filterdef.Built, error) {
	doc, err := filterdef.Load(o.fs, path)
	if err != nil {
		return nil, err
	}
	if q == nil && doc.Dialect == "" {
		doc.Dialect = o.cfg.Dialect
	}
	o.logger.Debug("document loaded", "path", path, "tables", len(doc.Tables))
	return filterdef.Build(doc, q)
}

// openStore connects to the configured database.
func (o *RootOptions) openStore() (*store.Store, error) {
	if o.cfg.DSN == "" {
		return nil, fmt.Errorf("no database configured: set database.dsn, DKO_DATABASE_DSN or --dsn")
	}
	opts := []store.Option{store.WithLogger(o.logger)}
	for _, schema := range slices.Sorted(maps.Keys(o.cfg.Attach)) {
		opts = append(opts, store.WithAttach(schema, o.cfg.Attach[schema]))
	}
	return store.Open(o.cfg.Driver, o.cfg.DSN, opts...)
}

// recordTable lays records out under the sorted union of their keys.
func recordTable(records []rowset.Record) ([]string, [][]string) {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	header := slices.Sorted(maps.Keys(seen))

	rows := make([][]string, len(records))
	for i, r := range records {
		row := make([]string, len(header))
		for j, k := range header {
			row[j] = formatValue(r[k])
		}
		rows[i] = row
	}
	return header, rows
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}
