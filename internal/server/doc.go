// Package server exposes the relay's HTTP surface: user lookup and
// history endpoints, a health check, and the websocket endpoint that
// binds client sessions to the dispatcher.
package server
