// Package database creates the Postgres connection pool used by the store.
package database
