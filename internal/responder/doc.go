// Package responder produces reply text for inbound messages.
//
// The interface is generator-agnostic: Canned is the placeholder backend,
// and a real generator can replace it as long as it keeps the synchronous
// call contract.
package responder
