// Package sql implements the dialect interfaces over database/sql.
//
// The package wraps a *sql.DB (typically opened with the lib/pq driver)
// in a dialect.Driver, and exposes the Rows/ColumnScanner plumbing the
// resolver layer scans result sets with.
package sql
