package sqlserver

import (
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// FXModule is an fx module that provides the SQL Server component.
var FXModule = fx.Module("sqlserver",
	fx.Provide(
		NewSQLServerClientWithDI,
		fx.Annotate(
			ProvideConnection,
			fx.As(new(dbconn.Connection)),
		),
	),
	fx.Invoke(RegisterSQLServerLifecycle),
)

// ProvideConnection exposes the concrete client as dbconn.Connection.
func ProvideConnection(db *SQLServer) dbconn.Connection {
	return db
}

// SQLServerParams groups the dependencies needed to create a SQL Server client.
type SQLServerParams struct {
	fx.In

	Config  Config
	Options dbconn.Options `optional:"true"`
	Logger  dbconn.Logger  `optional:"true"`
}

// NewSQLServerClientWithDI creates a SQL Server client from injected dependencies.
func NewSQLServerClientWithDI(params SQLServerParams) (*SQLServer, error) {
	return NewSQLServer(params.Config, params.Options, params.Logger)
}

// SQLServerLifeCycleParams groups the dependencies needed for lifecycle management.
type SQLServerLifeCycleParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	SQLServer   *SQLServer
	Maintenance dbconn.Maintenance `optional:"true"`
}

// RegisterSQLServerLifecycle connects on start and disconnects on stop.
func RegisterSQLServerLifecycle(params SQLServerLifeCycleParams) {
	dbconn.RegisterLifecycle(params.Lifecycle, params.SQLServer, params.Maintenance)
}
