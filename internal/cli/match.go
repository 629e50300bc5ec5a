package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bebedizo/DKO/internal/query"
	"github.com/bebedizo/DKO/internal/rowset"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	Rows   string // YAML or Parquet row file
	Strict bool   // reject exists conditions instead of querying
}

// MatchResult is the outcome of filtering a row file.
type MatchResult struct {
	Total   int             `json:"total"`
	Matched int             `json:"matched"`
	Rows    []rowset.Record `json:"rows"`
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match <document>",
		Short: "Evaluate a filter document against rows in memory",
		Long: `Evaluate the where clause of a filter document against every row of a
YAML or Parquet file. Rows are keyed by "table.column" or "column".

Exists conditions run their subquery against the configured database unless
--strict is given, in which case they are an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Rows, "rows", "", "row file (.yaml, .yml or .parquet)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on exists conditions")
	_ = cmd.MarkFlagRequired("rows")

	return cmd
}

func runMatch(opts *MatchOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var q query.Querier
	if !opts.Strict && opts.cfg.DSN != "" {
		st, err := opts.openStore()
		if err != nil {
			return formatter.Fail(ErrCodeDatabase, err)
		}
		defer st.Close()
		q = st
	}

	built, err := opts.buildDocument(path, q)
	if err != nil {
		return formatter.Fail(ErrCodeNotFound, err)
	}

	rows, err := rowset.Load(opts.fs, opts.Rows)
	if err != nil {
		return formatter.Fail(ErrCodeRows, err)
	}
	formatter.VerboseLog("Evaluating %s against %d row(s)", built.Condition(), len(rows))

	matched, err := rowset.Filter(cmd.Context(), rows, built.Condition(), opts.Strict)
	if err != nil {
		return formatter.Fail(ErrCodeEvaluation, err)
	}

	result := MatchResult{Total: len(rows), Matched: len(matched), Rows: matched}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if len(matched) > 0 {
		formatter.Table(recordTable(matched))
	}
	fmt.Fprintf(formatter.Writer, "%d of %d row(s) matched\n", result.Matched, result.Total)
	return nil
}
