// Package stage holds the ordered stage registry, the inclusive range
// selector and the sequencer that walks them.
//
// A stage is a numbered unit of the recipe with a description, the artifacts
// it reads and writes, and an action. The Runner executes selected stages in
// strictly ascending order and stops at the first failure; skipped stages
// perform no work at all.
package stage
