// Package sqlite provides the embedded SQLite backend of the connection layer.
//
// It uses the cgo-free modernc.org/sqlite driver. Busy timeout and foreign
// key enforcement are applied per connection through _pragma DSN parameters.
package sqlite
