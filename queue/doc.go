// Package queue implements the durable, file-backed record queues that
// connect pipeline stages. Each queue is an append-only log file holding one
// JSON-encoded record per line: appends are single atomic writes, so many
// producers can share a queue without locking, while the drain-then-commit
// path used by consumers performs a locked compaction that removes only the
// records it finished processing.
//
// Whole-file JSON arrays written by earlier tooling are still accepted on
// read.
package queue
