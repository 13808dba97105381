// Package staging manages per-task scratch directories. Every task works in
// its own directory, so concurrent tasks never contend on files.
package staging
