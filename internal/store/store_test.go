package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bebedizo/DKO/internal/scope"
	"github.com/bebedizo/DKO/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// createTestStore opens a SQLite store with the petstore schema attached and
// seeded. Statement logs go to the returned buffer as JSON lines.
func createTestStore(t *testing.T, opts ...Option) (*Store, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	opts = append([]Option{
		WithLogger(logger),
		WithIDGenerator(testutil.FixedID("")),
		WithAttach("petstore", filepath.Join(dir, "petstore.db")),
	}, opts...)
	s, err := Open("sqlite3", filepath.Join(dir, "main.db"), opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.ExecScript(ctx, testutil.PetstoreDDL); err != nil {
		t.Fatalf("create petstore: %v", err)
	}
	if err := s.ExecScript(ctx, testutil.PetstoreSeed); err != nil {
		t.Fatalf("seed petstore: %v", err)
	}
	logs.Reset()
	return s, &logs
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Dialect() != scope.SQLite {
		t.Errorf("Dialect() = %v, want sqlite", s.Dialect())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
}

func TestOpen_UnsupportedDrivers(t *testing.T) {
	_, err := Open("oracle", "dsn")
	assert.ErrorContains(t, err, `unknown dialect "oracle"`)

	_, err = Open("mysql", "dsn")
	assert.ErrorContains(t, err, "no driver wired for dialect mysql")
}

func TestOpen_AttachFailureClosesDatabase(t *testing.T) {
	_, err := Open("sqlite3", filepath.Join(t.TempDir(), "test.db"),
		WithAttach("petstore", filepath.Join(t.TempDir(), "missing", "dir", "x.db")))
	assert.ErrorContains(t, err, "failed to attach petstore")
}

func TestOpen_RejectsUnsafeSchemaNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"", "1st", "petstore; drop table x", `pet"store`, "pet store"} {
		t.Run(name, func(t *testing.T) {
			_, err := Open("sqlite3", filepath.Join(dir, "test.db"),
				WithAttach(name, filepath.Join(dir, "other.db")))
			require.Error(t, err)
			assert.ErrorContains(t, err, "schema name must match")
		})
	}

	s, err := Open("sqlite3", filepath.Join(dir, "ok.db"),
		WithAttach("_pet_store2", filepath.Join(dir, "pet.db")))
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestClose_NilDB(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}

func TestQuery_AttachedSchema(t *testing.T) {
	s, _ := createTestStore(t)

	rows, err := s.Query(context.Background(),
		"select item.itemid from petstore.item item where item.status = ? order by item.itemid", "S")
	require.NoError(t, err)
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"EST-3", "EST-5"}, ids)
}

func TestGet(t *testing.T) {
	s, logs := createTestStore(t, WithIDGenerator(NewFixedGenerator("ddl", "seed", "stmt-1", "stmt-2")))
	ctx := context.Background()

	var n int
	require.NoError(t, s.Get(ctx, &n, "select count(*) from petstore.item where status = ?", "S"))
	assert.Equal(t, 2, n)
	assert.Contains(t, logs.String(), `"msg":"sql get"`)

	var name string
	err := s.Get(ctx, &name, "select name from petstore.supplier where suppid = ?", 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.True(t, strings.HasPrefix(err.Error(), "get: "))
}

func TestQuery_LogsStatement(t *testing.T) {
	s, logs := createTestStore(t, WithIDGenerator(NewFixedGenerator("ddl", "seed", "stmt-1", "stmt-2")))

	rows, err := s.Query(context.Background(), "select count(*) from petstore.item where listprice > ?", 3)
	require.NoError(t, err)
	require.NoError(t, rows.Close())

	_, err = s.Exec(context.Background(), "update petstore.item set status = ? where itemid = ?", "S", "EST-1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "sql query", first["msg"])
	assert.Equal(t, "stmt-1", first["stmt"])
	assert.Equal(t, "sqlite", first["dialect"])
	assert.Equal(t, "select count(*) from petstore.item where listprice > ?", first["sql"])
	assert.Equal(t, []any{float64(3)}, first["bindings"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "sql exec", second["msg"])
	assert.Equal(t, "stmt-2", second["stmt"])
}

func TestQuery_ErrorWrapped(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.Query(context.Background(), "select nope from petstore.item")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "query: "))

	_, err = s.Exec(context.Background(), "insert into petstore.item (itemid) values (?)", "EST-9")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "exec: "))
}

func TestQuery_ForeignKeysEnforced(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.Exec(context.Background(),
		"insert into petstore.item (itemid, productid, listprice, supplier, status) values (?, ?, ?, ?, ?)",
		"EST-9", "NO-SUCH", 1.0, 1, "P")
	assert.Error(t, err)
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.PanicsWithValue(t, "FixedGenerator: all ids exhausted", func() { gen.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	var gen UUIDv7Generator
	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14], "version nibble")
}
