// Package preflight checks the environment before a run launches anything:
// the recipe tools resolve, the output roots are writable, enough disk is
// free under them, and the configured inputs exist.
//
// The run command treats a failed check as a configuration error and stops
// before the first stage; the check command prints every result.
package preflight
