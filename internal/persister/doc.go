// Package persister drains the gateway queue and commits accepted
// messages durably in bounded batches.
//
// A failed batch is logged, counted and dropped; there is no retry, so a
// storage outage loses that cycle's messages. Tightening this to
// at-least-once needs a deliberate redesign of the hand-off, not a local
// retry loop.
package persister
