// Package paths derives every on-disk location of the recipe from the
// configuration alone.
//
// All functions are pure: they never touch the filesystem, so a later stage
// run in isolation resolves the same directories an earlier full run wrote.
// Creating directories is left to callers (see fileutil.EnsureDir).
package paths
