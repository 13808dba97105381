// Package qc is the HTTP client for the subtitle quality scoring service.
package qc
