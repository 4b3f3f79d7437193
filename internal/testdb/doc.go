// Package testdb provides helpers for integration tests that need a real
// PostgreSQL database. Tests skip themselves unless DATABASE_URL or
// TASKTRACK_TEST_DB_URL is set, and each test body runs inside a
// transaction that is rolled back afterwards.
package testdb
