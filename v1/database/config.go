package database

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/failedquery"
	"github.com/Aleph-Alpha/etl-manager/v1/mongodb"
	"github.com/Aleph-Alpha/etl-manager/v1/mysql"
	"github.com/Aleph-Alpha/etl-manager/v1/oracle"
	"github.com/Aleph-Alpha/etl-manager/v1/postgres"
	"github.com/Aleph-Alpha/etl-manager/v1/sqlite"
	"github.com/Aleph-Alpha/etl-manager/v1/sqlserver"
)

// Config selects one backend and carries its configuration.
// Use one of the helper functions (PostgresConfig, MySQLConfig, ...) or
// LoadConfig to create it.
type Config struct {
	// Type names the backend. Aliases such as "postgres", "mariadb" or
	// "mssql" are accepted.
	Type string `yaml:"type"`

	Postgres  *postgres.Config  `yaml:"postgres"`
	MySQL     *mysql.Config     `yaml:"mysql"`
	SQLite    *sqlite.Config    `yaml:"sqlite"`
	SQLServer *sqlserver.Config `yaml:"sqlserver"`
	Oracle    *oracle.Config    `yaml:"oracle"`
	MongoDB   *mongodb.Config   `yaml:"mongodb"`

	// Options holds retry and long-query settings shared by all backends.
	Options dbconn.Options `yaml:"options"`

	// FailedQueries enables the failed-query log when set.
	FailedQueries *failedquery.Config `yaml:"failed_queries"`

	Maintenance dbconn.Maintenance `yaml:"maintenance"`
}

// ClientOptions returns Options with the failed-query log built from
// FailedQueries, when configured and not already set.
func (c Config) ClientOptions(logger dbconn.Logger) dbconn.Options {
	opts := c.Options
	if opts.FailedQueries == nil && c.FailedQueries != nil {
		var fl failedquery.Logger
		if logger != nil {
			fl = logger
		}
		opts.FailedQueries = failedquery.New(*c.FailedQueries, fl)
	}
	return opts
}

// LoadConfig reads a Config from a YAML file. Environment and secret
// resolution are left to the caller.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read database config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, dbconn.NewValidationError("", "load config", "invalid YAML in "+path, err)
	}
	return cfg, nil
}

// PostgresConfig creates a database.Config for PostgreSQL.
//
// Example:
//
//	fx.Provide(func() database.Config {
//	    return database.PostgresConfig(postgres.Config{
//	        Connection: postgres.Connection{Host: "localhost", User: "etl", DbName: "warehouse"},
//	    })
//	})
func PostgresConfig(cfg postgres.Config) Config {
	return Config{Type: string(dbconn.PostgreSQL), Postgres: &cfg}
}

// MySQLConfig creates a database.Config for MySQL or MariaDB.
func MySQLConfig(cfg mysql.Config) Config {
	return Config{Type: string(dbconn.MySQL), MySQL: &cfg}
}

// SQLiteConfig creates a database.Config for SQLite.
func SQLiteConfig(cfg sqlite.Config) Config {
	return Config{Type: string(dbconn.SQLite), SQLite: &cfg}
}

// SQLServerConfig creates a database.Config for SQL Server.
func SQLServerConfig(cfg sqlserver.Config) Config {
	return Config{Type: string(dbconn.SQLServer), SQLServer: &cfg}
}

// OracleConfig creates a database.Config for Oracle.
func OracleConfig(cfg oracle.Config) Config {
	return Config{Type: string(dbconn.Oracle), Oracle: &cfg}
}

// MongoDBConfig creates a database.Config for MongoDB.
func MongoDBConfig(cfg mongodb.Config) Config {
	return Config{Type: string(dbconn.MongoDB), MongoDB: &cfg}
}
