package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bebedizo/DKO/internal/rowset"
)

// QueryResult holds fetched rows.
type QueryResult struct {
	Rows []rowset.Record `json:"rows"`
}

// CountResult holds a row count.
type CountResult struct {
	Count int `json:"count"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <document>",
		Short: "Run a filter document against the configured database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], cmd)
		},
	}
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count <document>",
		Short: "Count the rows a filter document selects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(rootOpts, args[0], cmd)
		},
	}
}

func runQuery(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := opts.openStore()
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, err)
	}
	defer st.Close()

	built, err := opts.buildDocument(path, st)
	if err != nil {
		return formatter.Fail(ErrCodeNotFound, err)
	}

	records, err := built.Query.Fetch(cmd.Context())
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(QueryResult{Rows: records})
	}
	if len(records) > 0 {
		formatter.Table(recordTable(records))
	}
	fmt.Fprintf(formatter.Writer, "%d row(s)\n", len(records))
	return nil
}

func runCount(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := opts.openStore()
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, err)
	}
	defer st.Close()

	built, err := opts.buildDocument(path, st)
	if err != nil {
		return formatter.Fail(ErrCodeNotFound, err)
	}

	n, err := built.Query.Count(cmd.Context())
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(CountResult{Count: n})
	}
	fmt.Fprintln(formatter.Writer, n)
	return nil
}
