// Package dispatcher composes the per-session request/response cycle:
// admission, durable writes, reply generation and delivery back to the
// user's live sessions.
package dispatcher
