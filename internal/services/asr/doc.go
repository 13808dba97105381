// Package asr is the HTTP client for the speech recognition service.
package asr
