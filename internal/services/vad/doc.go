// Package vad is the HTTP client for the voice activity detection service.
package vad
