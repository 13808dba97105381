// Package downloader wraps the external media fetch binary and normalizes
// its metadata output and failure modes.
package downloader
