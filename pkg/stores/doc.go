// Package stores persists finalized converge runs and their action records
// in SQLite (modernc.org/sqlite, WAL mode) with schema migrations embedded
// and applied by golang-migrate.
package stores
