// Package store implements the durable Postgres storage for users and
// messages.
//
// Messages are append-only. Both the single and multi-record append assign
// ids and timestamps on the server side and are durable on return; the
// multi-record append commits the whole batch as one transaction.
package store
