// Package feed is the HTTP client for the source channel listing service
// used by the automatic monitor.
package feed
