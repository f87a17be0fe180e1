// Package blobdir provides a virtual directory for segment-based search
// engines that stores every file as a row of a single SQL table.
//
// The engine sees ordinary file operations: open for read, open for write
// (append), whole-file read and write, delete, exists, list, watch, and
// named advisory locks. blobdir maps them onto a blobstore.BlobStore, by
// default the table "blobs" in a SQLite database, so an index can live
// next to the application data it indexes and is backed up with it.
//
// # Quick Start
//
//	ctx := context.Background()
//	dir, err := blobdir.Open(ctx, "app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dir.Close()
//
//	w, _ := dir.OpenWrite(ctx, "segment_1.idx")
//	w.Write(header)
//	w.Write(postings)
//	w.Close() // one atomic commit
//
//	r, _ := dir.OpenRead(ctx, "segment_1.idx")
//	defer r.Close()
//	buf := make([]byte, 16)
//	r.ReadAt(buf, 0)
//
// To share an existing database, create the store yourself:
//
//	store, _ := sqlite.New(ctx, db, sqlite.WithTable("search_files"))
//	dir, _ := blobdir.New(ctx, store)
//
// # Consistency
//
// Write handles buffer in memory and commit on Flush or Close with a single
// upsert, so readers see either the old or the new file, never a mix. Read
// handles materialize the whole file when opened and keep that view for
// their lifetime. Concurrent readers of the same unchanged file share one
// snapshot.
//
// # Locks
//
// AcquireLock and ReleaseLock serialize writers. By default locks are
// scoped to the process. WithLeaseLocks coordinates several processes that
// open the same database, using lease rows that expire if a holder dies.
//
// # Errors
//
// Missing paths report ErrNotFound (fs.ErrNotExist); store failures match
// ErrStorageUnavailable. Both can be tested with errors.Is.
package blobdir
