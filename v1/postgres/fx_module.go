package postgres

import (
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// FXModule is an fx module that provides the Postgres database component.
// It registers the Postgres constructor for dependency injection and sets up
// lifecycle hooks that connect on start, run the health monitor and the
// failed-query replay loop, and disconnect on stop.
//
// The module provides both *Postgres and the dbconn.Connection interface.
var FXModule = fx.Module("postgres",
	fx.Provide(
		NewPostgresClientWithDI,
		fx.Annotate(
			ProvideConnection,
			fx.As(new(dbconn.Connection)),
		),
	),
	fx.Invoke(RegisterPostgresLifecycle),
)

// ProvideConnection exposes the concrete client as dbconn.Connection.
func ProvideConnection(pg *Postgres) dbconn.Connection {
	return pg
}

// PostgresParams groups the dependencies needed to create a Postgres client
// via dependency injection.
type PostgresParams struct {
	fx.In

	Config  Config
	Options dbconn.Options `optional:"true"`
	Logger  dbconn.Logger  `optional:"true"`
}

// NewPostgresClientWithDI creates a Postgres client from injected dependencies.
//
// Example usage with fx:
//
//	app := fx.New(
//	    postgres.FXModule,
//	    fx.Provide(
//	        func() postgres.Config {
//	            return loadPostgresConfig() // Your config loading function
//	        },
//	    ),
//	)
func NewPostgresClientWithDI(params PostgresParams) (*Postgres, error) {
	return NewPostgres(params.Config, params.Options, params.Logger)
}

// PostgresLifeCycleParams groups the dependencies needed for lifecycle management.
type PostgresLifeCycleParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Postgres    *Postgres
	Maintenance dbconn.Maintenance `optional:"true"`
}

// RegisterPostgresLifecycle connects on application start and disconnects on stop.
// The health monitor and replay loop run between the two and are stopped
// before the pool is closed.
func RegisterPostgresLifecycle(params PostgresLifeCycleParams) {
	dbconn.RegisterLifecycle(params.Lifecycle, params.Postgres, params.Maintenance)
}
