package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags and the state shared by all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	fs     afero.Fs
	v      *viper.Viper
	cfg    *Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dko CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(afero.NewOsFs())
}

// newRootCommand builds the command tree reading documents, row files and
// config through fs.
func newRootCommand(fs afero.Fs) *cobra.Command {
	opts := &RootOptions{fs: fs, v: viper.New()}

	cmd := &cobra.Command{
		Use:   "dko",
		Short: "dko - typed filter conditions rendered to SQL",
		Long: `Render filter documents to parameterized SQL, evaluate them against
materialized rows, or run them against a database.

Configuration is read from dko.yaml in the working directory (or --config),
then from DKO_* environment variables, e.g. DKO_DATABASE_DSN.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := loadConfig(opts.v, opts.fs, opts.ConfigFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading config", err)
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, opts.Verbose)
			if err != nil {
				return WrapExitError(ExitCommandError, "configuring logging", err)
			}
			opts.cfg = cfg
			opts.logger = logger
			slog.SetDefault(logger)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./dko.yaml)")
	bindConfigFlags(opts.v, cmd.PersistentFlags())

	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewMatchCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
