// Package main hosts the conveyor CLI entrypoint and command graph.
//
// The Cobra-based command tree covers queue submission and maintenance,
// manual review decisions, cancellation, notification checks, and
// configuration scaffolding. Commands operate on the shared queue database
// directly; the daemon and the CLI coordinate through SQLite's WAL mode.
package main
