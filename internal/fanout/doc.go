// Package fanout launches a stage's partitioned sub-jobs and aggregates their
// completion.
//
// Run starts every partition of every branch without waiting, then blocks
// until all of them have returned. A failing sub-job never cancels its
// siblings; the verdict is taken only after the join, from per-sub-job
// result slots that no two goroutines share. Shard listings written by the
// partitions are merged with Concat once the outcome is clean.
package fanout
