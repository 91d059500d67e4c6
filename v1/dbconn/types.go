package dbconn

import (
	"fmt"
	"strings"
)

// Type identifies a storage backend.
type Type string

const (
	PostgreSQL Type = "postgresql"
	MySQL      Type = "mysql"
	SQLite     Type = "sqlite"
	SQLServer  Type = "sqlserver"
	Oracle     Type = "oracle"
	MongoDB    Type = "mongodb"
)

// Types lists every supported backend in a stable order.
func Types() []Type {
	return []Type{PostgreSQL, MySQL, SQLite, SQLServer, Oracle, MongoDB}
}

// ParseType maps a backend name, including common aliases, to a Type.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgresql", "postgres", "pg":
		return PostgreSQL, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	case "oracle", "godror":
		return Oracle, nil
	case "mongodb", "mongo":
		return MongoDB, nil
	}
	return "", NewValidationError("", "parse type", fmt.Sprintf("unsupported database type: %s", name), nil)
}

// Placeholder returns the native marker style for a relational backend.
func (t Type) Placeholder() Style {
	switch t {
	case PostgreSQL:
		return Dollar
	case Oracle:
		return Colon
	case SQLServer:
		return AtP
	default:
		return Question
	}
}
