// Package resource tracks the process-wide budgets of a blob directory.
//
// A Controller governs three resources:
//
//   - Memory: bytes pinned by materialized read snapshots and write buffers
//     (non-blocking, fail-fast)
//   - Transfers: concurrent blob copies between stores (blocking semaphore)
//   - IO: bytes per second moved by copies (token bucket)
//
// All methods are safe for concurrent use, and every method on a nil
// *Controller is a no-op so limits stay optional.
package resource
