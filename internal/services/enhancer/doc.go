// Package enhancer is the HTTP client for the metadata translation and
// tagging service.
package enhancer
