// Package config loads, validates, and normalizes conveyor configuration.
//
// Configuration comes from a TOML file. Load applies defaults first, then
// decodes the file over them, normalizes paths and ranges, and validates the
// result. Pipeline stages never read live config; they receive an immutable
// Snapshot captured when the task starts.
package config
