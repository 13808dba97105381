// Package publish uploads the finished media to the destination platform.
package publish
