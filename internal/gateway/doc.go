// Package gateway implements admission control for inbound messages.
//
// Accept applies the per-user rate limit and then enqueues the task into a
// bounded FIFO queue shared with the batch persister. A full queue blocks
// the caller instead of dropping work; rate limiting happens strictly
// before enqueue and is never applied to tasks already queued.
package gateway
