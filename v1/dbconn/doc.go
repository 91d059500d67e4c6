// Package dbconn defines the connection contract shared by every backend client
// and the types that cross it.
//
// # Contract
//
// Connection is implemented by the postgres, mysql, sqlite, sqlserver, oracle
// and mongodb packages. Callers obtain one from database.New, call Connect, and
// then issue queries or hand it to a crud.Engine.
//
// # Placeholders
//
// Callers always write "?" (or "%s") markers. Each client rewrites them into
// its native style with TranslatePlaceholders before execution:
//
//	TranslatePlaceholders("a = ? AND b = ?", Dollar) // "a = $1 AND b = $2"
//
// # Errors
//
// Every error returned across the contract is a *Error of one Kind:
// connection, query, timeout or validation. Backend-native errors are kept as
// the cause and never returned as the top-level type.
//
//	if dbconn.IsValidationError(err) { ... }
//
// # Records
//
// Read results are Records: ordered column/value mappings whose date and time
// values are already rendered as "2006-01-02" or "2006-01-02 15:04:05".
package dbconn
