// Package daemon supervises the background services: the workflow manager,
// the maintenance poller, and the notification bus. It enforces
// single-instance execution through a lock file.
package daemon
