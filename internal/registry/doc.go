// Package registry tracks live client sessions per user.
//
// The registry never owns session lifecycles: handles report their own
// liveness and dead ones are pruned lazily on the next connect for the
// same user. A single mutex serializes all mutation; operations touch only
// one user's session slice so the critical sections stay O(sessions per
// user).
package registry
