// Package sqlserver provides the Microsoft SQL Server backend of the
// connection layer, built on github.com/microsoft/go-mssqldb.
//
// Core Features:
//   - sqlserver:// URL DSN, validated with msdsn.Parse at construction
//   - Canonical markers rewritten to @p1, @p2, ...
//   - SAVE TRANSACTION / ROLLBACK TRANSACTION savepoints
//   - Deadlock victims (1205) and Azure transient errors are retried
//   - CopyIn for bulk loads through the TDS bulk copy protocol
//
// Per-call timeouts are enforced with context deadlines; the driver cancels
// the running batch on the server when the deadline passes.
package sqlserver
