// Package enhance translates a task's metadata for the target platform.
package enhance
