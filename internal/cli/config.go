package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config keys, also addressable as DKO_<KEY> with dots replaced by
// underscores.
const (
	keyDriver   = "database.driver"
	keyDSN      = "database.dsn"
	keyAttach   = "database.attach"
	keyDialect  = "dialect"
	keyLogLevel = "log.level"
)

// Config is the resolved CLI configuration.
type Config struct {
	Driver string
	DSN    string
	// Attach maps schema names to SQLite database files.
	Attach   map[string]string
	Dialect  string
	LogLevel string
}

func bindConfigFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.String("driver", "", "database driver (sqlite3|postgres)")
	flags.String("dsn", "", "database connection string")
	flags.String("dialect", "", "dialect for documents that do not name one")
	flags.String("log-level", "", "log level (debug|info|warn|error)")

	_ = v.BindPFlag(keyDriver, flags.Lookup("driver"))
	_ = v.BindPFlag(keyDSN, flags.Lookup("dsn"))
	_ = v.BindPFlag(keyDialect, flags.Lookup("dialect"))
	_ = v.BindPFlag(keyLogLevel, flags.Lookup("log-level"))
}

// loadConfig resolves flags, DKO_* variables, the config file and defaults,
// in that order of precedence. A missing dko.yaml is not an error; a missing
// file named with --config is.
func loadConfig(v *viper.Viper, fs afero.Fs, file string) (*Config, error) {
	v.SetFs(fs)
	v.SetDefault(keyDriver, "sqlite3")
	v.SetDefault(keyLogLevel, "warn")
	v.SetEnvPrefix("DKO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("dko")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &Config{
		Driver:   v.GetString(keyDriver),
		DSN:      v.GetString(keyDSN),
		Attach:   v.GetStringMapString(keyAttach),
		Dialect:  v.GetString(keyDialect),
		LogLevel: v.GetString(keyLogLevel),
	}, nil
}

// newLogger returns a text logger at level. verbose forces debug.
func newLogger(w io.Writer, level string, verbose bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
