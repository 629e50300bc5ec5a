package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bebedizo/DKO/internal/scope"
)

// Store executes SQL for one database.
type Store struct {
	db      *sqlx.DB
	dialect scope.Dialect
	ids     IDGenerator
	logger  *slog.Logger
}

type config struct {
	ids     IDGenerator
	logger  *slog.Logger
	attach  []attachment
	maxConn int
}

type attachment struct {
	schema string
	path   string
}

// Option configures Open.
type Option func(*config)

// WithLogger sets the statement logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithIDGenerator sets the statement id source. The default is
// UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *config) { c.ids = g }
}

// WithAttach attaches the SQLite database at path under the schema name.
// The name must be a plain identifier; Open rejects anything else.
// Ignored for other drivers.
func WithAttach(schema, path string) Option {
	return func(c *config) { c.attach = append(c.attach, attachment{schema: schema, path: path}) }
}

// WithMaxOpenConns caps the connection pool. SQLite is always capped at one.
func WithMaxOpenConns(n int) Option {
	return func(c *config) { c.maxConn = n }
}

// driverName maps a dialect to its registered database/sql driver.
func driverName(d scope.Dialect) (string, error) {
	switch d {
	case scope.SQLite:
		return "sqlite3", nil
	case scope.Postgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("no driver wired for dialect %s", d)
	}
}

// Open connects to the database. driver is a driver or dialect name
// ("sqlite3", "sqlite", "postgres", "postgresql").
//
// SQLite connections are limited to one open connection and configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := scope.ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	name, err := driverName(dialect)
	if err != nil {
		return nil, err
	}

	cfg := config{ids: UUIDv7Generator{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sqlx.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == scope.SQLite {
		// SQLite only supports one writer at a time, and pragmas and
		// attachments are per connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
		if err := attachAll(db, cfg.attach); err != nil {
			db.Close()
			return nil, err
		}
	} else if cfg.maxConn > 0 {
		db.SetMaxOpenConns(cfg.maxConn)
	}

	return &Store{db: db, dialect: dialect, ids: cfg.ids, logger: cfg.logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sqlx.DB for direct queries.
// Use with caution - statements run through it are neither rebound nor
// logged.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect reports the SQL dialect of the connected database.
func (s *Store) Dialect() scope.Dialect {
	return s.dialect
}

// Query executes a query and returns the resulting rows.
// Callers are responsible for closing the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	q := s.prepare(ctx, "query", query, args)
	rows, err := s.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

// Get runs a query expected to return one row and scans it into dest: a
// scalar pointer for a single column, or a struct with db tags. An empty
// result fails with an error wrapping sql.ErrNoRows.
func (s *Store) Get(ctx context.Context, dest any, query string, args ...any) error {
	q := s.prepare(ctx, "get", query, args)
	if err := s.db.GetContext(ctx, dest, q, args...); err != nil {
		return fmt.Errorf("get: %w", err)
	}
	return nil
}

// Exec executes a statement that returns no rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q := s.prepare(ctx, "exec", query, args)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return res, nil
}

// ExecScript runs a multi-statement script without parameters, such as DDL.
func (s *Store) ExecScript(ctx context.Context, script string) error {
	s.logger.DebugContext(ctx, "sql script", "stmt", s.ids.Generate(), "bytes", len(script))
	if _, err := s.db.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}
	return nil
}

// prepare rebinds query for the driver and logs it.
func (s *Store) prepare(ctx context.Context, kind, query string, args []any) string {
	q := Rebind(s.dialect, query)
	s.logger.DebugContext(ctx, "sql "+kind,
		"stmt", s.ids.Generate(),
		"dialect", s.dialect.String(),
		"sql", q,
		"bindings", args,
	)
	return q
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

var schemaName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// attachAll attaches each database. The schema name is spliced into the
// statement, so only plain identifiers are accepted.
func attachAll(db *sqlx.DB, attach []attachment) error {
	for _, a := range attach {
		if !schemaName.MatchString(a.schema) {
			return fmt.Errorf("failed to attach %q: schema name must match %s", a.schema, schemaName)
		}
		if _, err := db.Exec(`ATTACH DATABASE ? AS "`+a.schema+`"`, a.path); err != nil {
			return fmt.Errorf("failed to attach %s: %w", a.schema, err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.Get(&value, query); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
