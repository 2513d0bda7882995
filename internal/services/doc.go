// Package services defines shared utilities consumed by the pipeline stages
// and the external tool launcher.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, fan-out branches, and
//     partition indices for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (configuration, external tool, artifact integrity) for the run ledger
//     and the CLI exit message.
//
// Use these helpers when wiring new stage logic so failure reporting stays
// uniform across the recipe.
package services
