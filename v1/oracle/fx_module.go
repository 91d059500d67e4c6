package oracle

import (
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// FXModule is an fx module that provides the Oracle component.
var FXModule = fx.Module("oracle",
	fx.Provide(
		NewOracleClientWithDI,
		fx.Annotate(
			ProvideConnection,
			fx.As(new(dbconn.Connection)),
		),
	),
	fx.Invoke(RegisterOracleLifecycle),
)

// ProvideConnection exposes the concrete client as dbconn.Connection.
func ProvideConnection(db *Oracle) dbconn.Connection {
	return db
}

// OracleParams groups the dependencies needed to create an Oracle client.
type OracleParams struct {
	fx.In

	Config  Config
	Options dbconn.Options `optional:"true"`
	Logger  dbconn.Logger  `optional:"true"`
}

// NewOracleClientWithDI creates an Oracle client from injected dependencies.
func NewOracleClientWithDI(params OracleParams) (*Oracle, error) {
	return NewOracle(params.Config, params.Options, params.Logger)
}

// OracleLifeCycleParams groups the dependencies needed for lifecycle management.
type OracleLifeCycleParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Oracle      *Oracle
	Maintenance dbconn.Maintenance `optional:"true"`
}

// RegisterOracleLifecycle connects on start and disconnects on stop.
func RegisterOracleLifecycle(params OracleLifeCycleParams) {
	dbconn.RegisterLifecycle(params.Lifecycle, params.Oracle, params.Maintenance)
}
