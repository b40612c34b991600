// Package model defines the persistent record types shared across the relay.
//
// Users are created once per unique name. Messages are append-only: ids are
// assigned by the storage layer on durable write and records are never
// mutated or deleted afterwards.
package model
