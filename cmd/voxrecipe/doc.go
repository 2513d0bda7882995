// Package main hosts the voxrecipe CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once (file, then explicitly
// set flags), runs the selected stage range of the recipe, and exposes the
// registry, the derived layout, preflight checks and the run ledger for
// inspection.
//
// Keep this package lean: pipeline behavior lives in the internal packages and
// is only wired together here.
package main
