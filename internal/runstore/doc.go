// Package runstore keeps a SQLite ledger of pipeline runs and the outcome of
// every stage they executed.
//
// Each invocation of the runner opens a run row keyed by a UUID, records
// stage start and finish events (including failed sub-job counts and which
// partitions failed), and closes the run with its final status. The ledger
// backs the history command and lets operators see where a resumed run
// should start.
//
// Schema changes bump schemaVersion in schema.go; an older ledger must be
// deleted to adopt the new schema.
package runstore
