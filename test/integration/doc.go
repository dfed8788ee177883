// Package integration contains integration tests for the catalogue service and
// the manager application's shared stores.
//
// These tests use testcontainers to spin up real dependencies (Redis, PostgreSQL)
// and are skipped with -short.
package integration
