// Package logs reads the daemon log file for the CLI. It supports
// "last N lines" reads and offset-based forward reads so follow mode can
// poll for new lines with bounded memory.
package logs
