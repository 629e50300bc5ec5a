package scope

import (
	"fmt"
	"strings"
)

// Dialect selects database-specific rendering details.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
	MySQL
	SQLServer
)

var dialectNames = map[Dialect]string{
	SQLite:    "sqlite",
	Postgres:  "postgres",
	MySQL:     "mysql",
	SQLServer: "sqlserver",
}

func (d Dialect) String() string {
	if name, ok := dialectNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Dialect(%d)", int(d))
}

// SchemaSeparator is the text placed between schema and table name.
// SQL Server addresses tables through the dbo owner.
func (d Dialect) SchemaSeparator() string {
	if d == SQLServer {
		return ".dbo."
	}
	return "."
}

// ParseDialect maps a dialect or driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	default:
		return SQLite, fmt.Errorf("unknown dialect %q", name)
	}
}
