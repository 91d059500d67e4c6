package database

import (
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// FXModule provides a dbconn.Connection for the backend named in Config.
// The connection is opened on start, kept healthy by the maintenance loops
// while the application runs, and closed on stop.
//
// Usage:
//
//	app := fx.New(
//	    logger.FXModule,
//	    database.FXModule,
//	    fx.Provide(func() (database.Config, error) {
//	        return database.LoadConfig("database.yaml")
//	    }),
//	    fx.Invoke(func(conn dbconn.Connection) {
//	        // conn is connected once the app has started
//	    }),
//	)
var FXModule = fx.Module("database",
	fx.Provide(NewConnectionWithDI),
	fx.Invoke(RegisterDatabaseLifecycle),
)

// DatabaseParams groups the dependencies needed to create a connection.
type DatabaseParams struct {
	fx.In

	Config   Config
	Logger   dbconn.Logger   `optional:"true"`
	Observer dbconn.Observer `optional:"true"`
}

// DatabaseLifecycleParams groups the dependencies needed for connection lifecycle management.
type DatabaseLifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Config     Config
	Connection dbconn.Connection
}

// NewConnectionWithDI builds the configured client. An Observer found in the
// container, such as metrics.DatabaseMetrics, receives its measurements.
func NewConnectionWithDI(params DatabaseParams) (dbconn.Connection, error) {
	opts := params.Config.ClientOptions(params.Logger)
	if params.Observer != nil && opts.Observer == nil {
		opts.Observer = params.Observer
	}
	return New(params.Config, opts, params.Logger)
}

// RegisterDatabaseLifecycle connects on start and disconnects on stop.
func RegisterDatabaseLifecycle(params DatabaseLifecycleParams) {
	dbconn.RegisterLifecycle(params.Lifecycle, params.Connection, params.Config.Maintenance)
}
