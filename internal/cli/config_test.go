package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configYAML = `
database:
  driver: postgres
  dsn: postgres://localhost/petstore
  attach:
    petstore: /data/petstore.db
dialect: mysql
log:
  level: info
`

func newTestViper(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	v := viper.New()
	flags := pflag.NewFlagSet("dko", pflag.ContinueOnError)
	bindConfigFlags(v, flags)
	require.NoError(t, flags.Parse(args))
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper(t), afero.NewMemMapFs(), "")
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "", cfg.DSN)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Empty(t, cfg.Attach)
}

func TestLoadConfig_File(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "conf/dko.yaml", []byte(configYAML), 0o644))

	cfg, err := loadConfig(newTestViper(t), fs, "conf/dko.yaml")
	require.NoError(t, err)

	assert.Equal(t, &Config{
		Driver:   "postgres",
		DSN:      "postgres://localhost/petstore",
		Attach:   map[string]string{"petstore": "/data/petstore.db"},
		Dialect:  "mysql",
		LogLevel: "info",
	}, cfg)
}

func TestLoadConfig_Precedence(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "dko.yaml", []byte(configYAML), 0o644))
	t.Setenv("DKO_DIALECT", "sqlserver")
	t.Setenv("DKO_LOG_LEVEL", "error")

	cfg, err := loadConfig(newTestViper(t, "--log-level", "debug"), fs, "dko.yaml")
	require.NoError(t, err)

	assert.Equal(t, "sqlserver", cfg.Dialect, "environment beats file")
	assert.Equal(t, "debug", cfg.LogLevel, "flag beats environment")
	assert.Equal(t, "postgres", cfg.Driver, "file beats default")
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := loadConfig(newTestViper(t), afero.NewMemMapFs(), "nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_BadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "dko.yaml", []byte("database: [unclosed"), 0o644))

	_, err := loadConfig(newTestViper(t), fs, "dko.yaml")
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		debug   bool
		warn    bool
	}{
		{"warn", false, false, true},
		{"debug", false, true, true},
		{"error", false, false, false},
		{"error", true, true, true},
	}

	for _, tt := range tests {
		buf := &bytes.Buffer{}
		logger, err := newLogger(buf, tt.level, tt.verbose)
		require.NoError(t, err)

		logger.Debug("d")
		logger.Warn("w")
		assert.Equal(t, tt.debug, bytes.Contains(buf.Bytes(), []byte("msg=d")), tt.level)
		assert.Equal(t, tt.warn, bytes.Contains(buf.Bytes(), []byte("msg=w")), tt.level)
	}

	_, err := newLogger(&bytes.Buffer{}, "chatty", false)
	require.Error(t, err)
}
