// Package notifications delivers task status changes to external observers.
// Delivery is at-least-once with one retry; under backpressure only the
// latest event per task is kept.
package notifications
