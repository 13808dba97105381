// Package poller runs the daemon's periodic maintenance jobs. The jobs run
// outside the concurrency lanes so queue upkeep never competes with pipeline
// work for a slot.
package poller
