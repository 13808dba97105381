// Package publisher is the HTTP client for the upload destination.
package publisher
