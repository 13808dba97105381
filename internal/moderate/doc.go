// Package moderate runs the pre-publish content review gate.
package moderate
