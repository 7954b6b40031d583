// Package cmd implements the kvc command-line interface. It opens the
// collections of the configured engine directly (there is no server) and
// exposes their operations as commands.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for the ordered key-value collection (put, get, scan, merge, ...) and a benchmark
//   - queue: Commands for the persistent FIFO queue (push, pop, peek, ...)
//   - row: Commands to encode, decode and merge wide-column rows
//   - info: Prints configuration, collection info and metrics
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Configuration is read from a YAML file (--config), KVC_* environment
// variables (also from .env and .env.local) and flags, in increasing order of
// precedence. See kvc --help for a list of all commands.
package cmd
