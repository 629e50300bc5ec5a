package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// RenderResult is a rendered statement.
type RenderResult struct {
	Dialect  string `json:"dialect"`
	SQL      string `json:"sql"`
	Bindings []any  `json:"bindings"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "render <document>",
		Short: "Render a filter document to SQL and bindings",
		Long: `Render a YAML or CUE filter document to a parameterized select
statement. Placeholders are "?"; bindings are listed in placeholder order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(rootOpts, args[0], cmd)
		},
	}
}

func runRender(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	built, err := opts.buildDocument(path, nil)
	if err != nil {
		return formatter.Fail(ErrCodeNotFound, err)
	}
	formatter.VerboseLog("Rendering %s for %s", path, built.Dialect)

	sql, bindings, err := built.SQL()
	if err != nil {
		return formatter.Fail(ErrCodeResolve, err)
	}

	result := RenderResult{Dialect: built.Dialect.String(), SQL: sql, Bindings: bindings}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	data, err := json.Marshal(bindings)
	if err != nil {
		return formatter.Fail(ErrCodeGeneric, err)
	}
	fmt.Fprintln(formatter.Writer, sql)
	fmt.Fprintf(formatter.Writer, "-- bindings: %s\n", data)
	return nil
}
