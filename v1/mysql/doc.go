// Package mysql provides the MySQL and MariaDB backend of the connection layer.
//
// The DSN is rendered by go-sql-driver/mysql and opened through GORM; all
// statement execution goes through the shared sqlbase engine. Per-call
// timeouts are enforced with context deadlines, and savepoints use the
// standard SAVEPOINT / ROLLBACK TO SAVEPOINT syntax.
package mysql
