// Package sqlite stores blobs in a single SQL table using the pure-Go
// modernc.org/sqlite driver.
//
// The blob table has two columns, path (primary key) and content, and may
// live in the same database as an application's own tables:
//
//	db, _ := sql.Open("sqlite", "app.db")
//	store, err := sqlite.New(ctx, db, sqlite.WithTable("search_files"))
//
// A companion table named "<table>_locks" holds advisory lock leases that
// coordinate writers across processes (see Store.TryAcquire).
//
// Every Put is a single upsert statement, so a reader observes either the
// previous or the new content of a path. A Put interrupted by context
// cancellation leaves the previous content intact.
package sqlite
