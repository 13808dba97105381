// Package fetch downloads a task's source media and captures its metadata.
package fetch
