// Package database provides SQLite-backed persistence for crawl runs.
//
// Each crawl is stored as one row in the runs table (the full summary as
// JSON plus queryable metadata columns) and one row per page result in
// the pages table. The history command reads this store.
//
// Design decision: We use modernc.org/sqlite, a pure-Go SQLite driver,
// because it needs no cgo and therefore cross-compiles cleanly.
package database
