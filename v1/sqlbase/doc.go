// Package sqlbase implements the connection contract for every database/sql
// backend. Backend packages describe their differences in a Driver
// (placeholder style, pool construction, error classification, statement
// timeout and savepoint syntax); Client supplies the rest:
//
//   - tunnel setup before the pool target is computed, and teardown after the pool is drained
//   - one pooled session checked out per operation, discarded when broken
//   - uniform retry through retry.Executor with a transient-error allow-list
//   - chunked batch writes and transactional statement lists
//   - long-query warnings, failed-write capture and replay
//   - a span per operation through the global OpenTelemetry tracer
package sqlbase
