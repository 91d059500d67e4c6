package database

import (
	"fmt"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
	"github.com/Aleph-Alpha/etl-manager/v1/mongodb"
	"github.com/Aleph-Alpha/etl-manager/v1/mysql"
	"github.com/Aleph-Alpha/etl-manager/v1/oracle"
	"github.com/Aleph-Alpha/etl-manager/v1/postgres"
	"github.com/Aleph-Alpha/etl-manager/v1/sqlite"
	"github.com/Aleph-Alpha/etl-manager/v1/sqlserver"
)

// New builds the client selected by cfg.Type. The returned connection is
// validated but not connected; call Connect before use.
func New(cfg Config, opts dbconn.Options, logger dbconn.Logger) (dbconn.Connection, error) {
	t, err := dbconn.ParseType(cfg.Type)
	if err != nil {
		return nil, err
	}

	switch t {
	case dbconn.PostgreSQL:
		if cfg.Postgres == nil {
			return nil, missingConfig(t)
		}
		return connection(postgres.NewPostgres(*cfg.Postgres, opts, logger))
	case dbconn.MySQL:
		if cfg.MySQL == nil {
			return nil, missingConfig(t)
		}
		return connection(mysql.NewMySQL(*cfg.MySQL, opts, logger))
	case dbconn.SQLite:
		if cfg.SQLite == nil {
			return nil, missingConfig(t)
		}
		return connection(sqlite.NewSQLite(*cfg.SQLite, opts, logger))
	case dbconn.SQLServer:
		if cfg.SQLServer == nil {
			return nil, missingConfig(t)
		}
		return connection(sqlserver.NewSQLServer(*cfg.SQLServer, opts, logger))
	case dbconn.Oracle:
		if cfg.Oracle == nil {
			return nil, missingConfig(t)
		}
		return connection(oracle.NewOracle(*cfg.Oracle, opts, logger))
	case dbconn.MongoDB:
		if cfg.MongoDB == nil {
			return nil, missingConfig(t)
		}
		return connection(mongodb.NewMongoDB(*cfg.MongoDB, opts, logger))
	}
	return nil, dbconn.NewValidationError("", "new", fmt.Sprintf("unsupported database type: %s", cfg.Type), nil)
}

func missingConfig(t dbconn.Type) error {
	return dbconn.NewValidationError(t, "new", fmt.Sprintf("%s config is required when type=%s", t, t), nil)
}

// connection keeps a failed constructor from yielding a non-nil interface
// around a nil pointer.
func connection[C dbconn.Connection](c C, err error) (dbconn.Connection, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
