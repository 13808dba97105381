// Package queue persists pipeline tasks in SQLite and owns the task state
// machine. All status changes flow through Transition, which validates the
// requested event against the transition table and applies it with an
// optimistic status guard so concurrent claimers cannot double-apply.
package queue
