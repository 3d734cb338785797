// Package config loads and watches the debugctx configuration.
//
// Configuration comes from three layers, later layers overriding earlier
// ones:
//
//  1. Built-in defaults
//  2. A TOML file (debugctx.toml)
//  3. DEBUGCTX_* environment variables
//
// The Watcher reloads the TOML file on change so collection budgets can be
// adjusted while a session is running.
package config
