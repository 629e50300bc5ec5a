// Package store runs rendered queries against a SQL database.
//
// Queries arrive with ? placeholders, the form every renderer in this module
// produces, and are rebound to the driver's placeholder syntax with sqlx
// before execution. Result rows are returned as *sqlx.Rows. Two drivers are
// wired:
//
//   - sqlite3 (github.com/mattn/go-sqlite3)
//   - postgres (github.com/lib/pq)
//
// # Statement log
//
// Every statement is logged at debug level with a statement id, the SQL
// text as executed and the binding list. Ids come from an IDGenerator;
// production uses time-sortable UUIDv7 ids, tests use fixed ids.
//
// # SQLite configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Schemas other than main are attached databases (WithAttach), so a table
// rendered as petstore.item resolves the same way it does on PostgreSQL.
package store
