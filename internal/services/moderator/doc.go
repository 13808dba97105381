// Package moderator is the HTTP client for the content review service.
package moderator
