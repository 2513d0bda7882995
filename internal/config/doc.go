// Package config loads, normalizes, and validates voxrecipe configuration.
//
// It supplies recipe defaults, reads TOML files, applies command-line
// overrides, and rejects malformed or contradictory settings with
// services.ErrConfiguration before any stage runs. The resulting Config is the
// single immutable snapshot every stage reads from; nothing mutates it after
// Load returns.
package config
