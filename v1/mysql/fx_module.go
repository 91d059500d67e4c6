package mysql

import (
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// FXModule is an fx module that provides the MySQL database component. It
// also serves MariaDB, which speaks the same protocol.
var FXModule = fx.Module("mysql",
	fx.Provide(
		NewMySQLClientWithDI,
		fx.Annotate(
			ProvideConnection,
			fx.As(new(dbconn.Connection)),
		),
	),
	fx.Invoke(RegisterMySQLLifecycle),
)

// ProvideConnection exposes the concrete client as dbconn.Connection.
func ProvideConnection(db *MySQL) dbconn.Connection {
	return db
}

// MySQLParams groups the dependencies needed to create a MySQL client.
type MySQLParams struct {
	fx.In

	Config  Config
	Options dbconn.Options `optional:"true"`
	Logger  dbconn.Logger  `optional:"true"`
}

// NewMySQLClientWithDI creates a MySQL client from injected dependencies.
func NewMySQLClientWithDI(params MySQLParams) (*MySQL, error) {
	return NewMySQL(params.Config, params.Options, params.Logger)
}

// MySQLLifeCycleParams groups the dependencies needed for lifecycle management.
type MySQLLifeCycleParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	MySQL       *MySQL
	Maintenance dbconn.Maintenance `optional:"true"`
}

// RegisterMySQLLifecycle connects on start and disconnects on stop.
func RegisterMySQLLifecycle(params MySQLLifeCycleParams) {
	dbconn.RegisterLifecycle(params.Lifecycle, params.MySQL, params.Maintenance)
}
