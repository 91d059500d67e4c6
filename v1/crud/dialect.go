package crud

import (
	"fmt"
	"strings"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// Dialect is the per-backend SQL vocabulary of the engine: catalog queries,
// the column type map and the row-limit syntax. Queries use the canonical
// ? marker; the connection rewrites it for the backend.
type Dialect struct {
	Backend dbconn.Type

	// ColumnsQuery lists a table's column names, in declaration order, in
	// the first result column.
	ColumnsQuery func(schema, table string) (string, []any)

	// ExistsQuery counts tables with the given name in the first result cell.
	ExistsQuery func(schema, table string) (string, []any)

	Types TypeMap

	// Paginate renders the ORDER BY and row-limit tail of a SELECT. limit
	// zero means unlimited; firstColumn is available for dialects that need
	// an ordering to limit.
	Paginate func(orderBy, firstColumn string, limit int) string

	// QuoteColumn renders a validated column name for interpolation.
	QuoteColumn func(name string) string

	// ValidateColumn checks a column name before interpolation.
	ValidateColumn func(name string) error
}

// TypeMap holds a dialect's DDL types for each inferred value kind.
type TypeMap struct {
	Integer    string
	BigInteger string
	Float      string
	Date       string
	DateTime   string
	Boolean    string
	Binary     string
	Structured string

	// String picks a type for strings of at most maxLen characters.
	String func(maxLen int) string

	// Default is used when a column has no sample data.
	Default string

	// Identity is the auto-generated integer primary key definition.
	Identity string
}

// DialectFor returns the built-in dialect of a backend. MongoDB has none.
func DialectFor(t dbconn.Type) (Dialect, error) {
	switch t {
	case dbconn.PostgreSQL:
		return PostgresDialect(), nil
	case dbconn.MySQL:
		return MySQLDialect(), nil
	case dbconn.SQLite:
		return SQLiteDialect(), nil
	case dbconn.SQLServer:
		return SQLServerDialect(), nil
	case dbconn.Oracle:
		return OracleDialect(), nil
	}
	return Dialect{}, dbconn.NewValidationError(t, "crud", fmt.Sprintf("no SQL dialect for backend %q", t), nil)
}

func plainColumn(name string) string { return name }

func limitTail(orderBy string, limit int) string {
	var b strings.Builder
	if orderBy != "" {
		b.WriteString(" ORDER BY " + orderBy)
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	return b.String()
}

// PostgresDialect targets PostgreSQL. Unquoted names fold to lower case, so
// catalog lookups do too.
func PostgresDialect() Dialect {
	return Dialect{
		Backend: dbconn.PostgreSQL,
		ColumnsQuery: func(schema, table string) (string, []any) {
			q := "SELECT column_name FROM information_schema.columns WHERE table_name = LOWER(?)"
			if schema == "" {
				return q + " AND table_schema = current_schema() ORDER BY ordinal_position", []any{table}
			}
			return q + " AND table_schema = LOWER(?) ORDER BY ordinal_position", []any{table, schema}
		},
		ExistsQuery: func(schema, table string) (string, []any) {
			q := "SELECT COUNT(*) FROM information_schema.tables WHERE table_name = LOWER(?)"
			if schema == "" {
				return q + " AND table_schema = current_schema()", []any{table}
			}
			return q + " AND table_schema = LOWER(?)", []any{table, schema}
		},
		Types: TypeMap{
			Integer:    "INTEGER",
			BigInteger: "BIGINT",
			Float:      "DOUBLE PRECISION",
			Date:       "DATE",
			DateTime:   "TIMESTAMP",
			Boolean:    "BOOLEAN",
			Binary:     "BYTEA",
			Structured: "JSONB",
			String:     func(int) string { return "TEXT" },
			Default:    "TEXT",
			Identity:   "SERIAL PRIMARY KEY",
		},
		Paginate:       func(orderBy, _ string, limit int) string { return limitTail(orderBy, limit) },
		QuoteColumn:    plainColumn,
		ValidateColumn: validateColumn,
	}
}

// MySQLDialect targets MySQL and MariaDB.
func MySQLDialect() Dialect {
	return Dialect{
		Backend: dbconn.MySQL,
		ColumnsQuery: func(schema, table string) (string, []any) {
			if schema == "" {
				return "SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION", []any{table}
			}
			return "SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION", []any{schema, table}
		},
		ExistsQuery: func(schema, table string) (string, []any) {
			if schema == "" {
				return "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?", []any{table}
			}
			return "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?", []any{schema, table}
		},
		Types: TypeMap{
			Integer:    "INT",
			BigInteger: "BIGINT",
			Float:      "DOUBLE",
			Date:       "DATE",
			DateTime:   "DATETIME",
			Boolean:    "BOOLEAN",
			Binary:     "BLOB",
			Structured: "JSON",
			String: func(n int) string {
				if n > 255 {
					return "TEXT"
				}
				return "VARCHAR(255)"
			},
			Default:  "VARCHAR(255)",
			Identity: "INT AUTO_INCREMENT PRIMARY KEY",
		},
		Paginate:       func(orderBy, _ string, limit int) string { return limitTail(orderBy, limit) },
		QuoteColumn:    plainColumn,
		ValidateColumn: validateColumn,
	}
}

// SQLiteDialect targets SQLite. Column lookups use the pragma_table_info
// table-valued function so the name can be bound.
func SQLiteDialect() Dialect {
	return Dialect{
		Backend: dbconn.SQLite,
		ColumnsQuery: func(schema, table string) (string, []any) {
			if schema == "" {
				return "SELECT name FROM pragma_table_info(?) ORDER BY cid", []any{table}
			}
			return "SELECT name FROM pragma_table_info(?, ?) ORDER BY cid", []any{table, schema}
		},
		ExistsQuery: func(schema, table string) (string, []any) {
			master := "sqlite_master"
			if schema != "" {
				master = schema + ".sqlite_master"
			}
			return "SELECT COUNT(*) FROM " + master + " WHERE type = 'table' AND name = ?", []any{table}
		},
		Types: TypeMap{
			Integer:    "INTEGER",
			BigInteger: "INTEGER",
			Float:      "REAL",
			Date:       "DATE",
			DateTime:   "DATETIME",
			Boolean:    "BOOLEAN",
			Binary:     "BLOB",
			Structured: "TEXT",
			String:     func(int) string { return "TEXT" },
			Default:    "TEXT",
			Identity:   "INTEGER PRIMARY KEY AUTOINCREMENT",
		},
		Paginate:       func(orderBy, _ string, limit int) string { return limitTail(orderBy, limit) },
		QuoteColumn:    plainColumn,
		ValidateColumn: validateColumn,
	}
}

// SQLServerDialect targets Microsoft SQL Server. Column names with spaces
// or punctuation are bracket-quoted.
func SQLServerDialect() Dialect {
	return Dialect{
		Backend: dbconn.SQLServer,
		ColumnsQuery: func(schema, table string) (string, []any) {
			if schema == "" {
				return "SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = ? ORDER BY ORDINAL_POSITION", []any{table}
			}
			return "SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION", []any{schema, table}
		},
		ExistsQuery: func(schema, table string) (string, []any) {
			if schema == "" {
				return "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = ?", []any{table}
			}
			return "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?", []any{schema, table}
		},
		Types: TypeMap{
			Integer:    "INT",
			BigInteger: "BIGINT",
			Float:      "FLOAT",
			Date:       "DATE",
			DateTime:   "DATETIME2",
			Boolean:    "BIT",
			Binary:     "VARBINARY(MAX)",
			Structured: "NVARCHAR(MAX)",
			String: func(n int) string {
				if n > 4000 {
					return "VARCHAR(MAX)"
				}
				return fmt.Sprintf("VARCHAR(%d)", max(n*2, 50))
			},
			Default:  "VARCHAR(MAX)",
			Identity: "INT IDENTITY(1,1) PRIMARY KEY",
		},
		Paginate: func(orderBy, firstColumn string, limit int) string {
			if limit <= 0 {
				if orderBy == "" {
					return ""
				}
				return " ORDER BY " + orderBy
			}
			if orderBy == "" {
				orderBy = firstColumn
			}
			return fmt.Sprintf(" ORDER BY %s OFFSET 0 ROWS FETCH NEXT %d ROWS ONLY", orderBy, limit)
		},
		QuoteColumn: func(name string) string {
			if identifierRe.MatchString(name) {
				return name
			}
			return "[" + name + "]"
		},
		ValidateColumn: validateBracketedColumn,
	}
}

// OracleDialect targets Oracle Database 12c and later. Unquoted names fold
// to upper case in the data dictionary.
func OracleDialect() Dialect {
	return Dialect{
		Backend: dbconn.Oracle,
		ColumnsQuery: func(schema, table string) (string, []any) {
			q := "SELECT COLUMN_NAME FROM ALL_TAB_COLUMNS WHERE TABLE_NAME = UPPER(?)"
			if schema == "" {
				return q + " AND OWNER = SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA') ORDER BY COLUMN_ID", []any{table}
			}
			return q + " AND OWNER = UPPER(?) ORDER BY COLUMN_ID", []any{table, schema}
		},
		ExistsQuery: func(schema, table string) (string, []any) {
			q := "SELECT COUNT(*) FROM ALL_TABLES WHERE TABLE_NAME = UPPER(?)"
			if schema == "" {
				return q + " AND OWNER = SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA')", []any{table}
			}
			return q + " AND OWNER = UPPER(?)", []any{table, schema}
		},
		Types: TypeMap{
			Integer:    "NUMBER",
			BigInteger: "NUMBER",
			Float:      "FLOAT",
			Date:       "DATE",
			DateTime:   "TIMESTAMP",
			Boolean:    "NUMBER(1)",
			Binary:     "BLOB",
			Structured: "CLOB",
			String: func(n int) string {
				if n > 255 {
					return "CLOB"
				}
				return "VARCHAR2(255)"
			},
			Default:  "VARCHAR2(255)",
			Identity: "NUMBER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
		},
		Paginate: func(orderBy, _ string, limit int) string {
			var b strings.Builder
			if orderBy != "" {
				b.WriteString(" ORDER BY " + orderBy)
			}
			if limit > 0 {
				fmt.Fprintf(&b, " FETCH NEXT %d ROWS ONLY", limit)
			}
			return b.String()
		},
		QuoteColumn:    plainColumn,
		ValidateColumn: validateColumn,
	}
}
