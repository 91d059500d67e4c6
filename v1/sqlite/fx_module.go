package sqlite

import (
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// FXModule provides the SQLite component and manages its lifecycle.
var FXModule = fx.Module("sqlite",
	fx.Provide(
		NewSQLiteClientWithDI,
		fx.Annotate(
			ProvideConnection,
			fx.As(new(dbconn.Connection)),
		),
	),
	fx.Invoke(RegisterSQLiteLifecycle),
)

// ProvideConnection exposes the concrete client as dbconn.Connection.
func ProvideConnection(db *SQLite) dbconn.Connection {
	return db
}

type SQLiteParams struct {
	fx.In

	Config  Config
	Options dbconn.Options `optional:"true"`
	Logger  dbconn.Logger  `optional:"true"`
}

func NewSQLiteClientWithDI(params SQLiteParams) (*SQLite, error) {
	return NewSQLite(params.Config, params.Options, params.Logger)
}

type SQLiteLifeCycleParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	SQLite      *SQLite
	Maintenance dbconn.Maintenance `optional:"true"`
}

func RegisterSQLiteLifecycle(params SQLiteLifeCycleParams) {
	dbconn.RegisterLifecycle(params.Lifecycle, params.SQLite, params.Maintenance)
}
