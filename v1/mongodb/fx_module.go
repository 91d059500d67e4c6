package mongodb

import (
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// FXModule is an fx module that provides the MongoDB component.
var FXModule = fx.Module("mongodb",
	fx.Provide(
		NewMongoDBClientWithDI,
		fx.Annotate(
			ProvideConnection,
			fx.As(new(dbconn.Connection)),
		),
	),
	fx.Invoke(RegisterMongoDBLifecycle),
)

// ProvideConnection exposes the concrete client as dbconn.Connection.
func ProvideConnection(db *MongoDB) dbconn.Connection {
	return db
}

// MongoDBParams groups the dependencies needed to create a MongoDB client.
type MongoDBParams struct {
	fx.In

	Config  Config
	Options dbconn.Options `optional:"true"`
	Logger  dbconn.Logger  `optional:"true"`
}

// NewMongoDBClientWithDI creates a MongoDB client from injected dependencies.
func NewMongoDBClientWithDI(params MongoDBParams) (*MongoDB, error) {
	return NewMongoDB(params.Config, params.Options, params.Logger)
}

// MongoDBLifeCycleParams groups the dependencies needed for lifecycle management.
type MongoDBLifeCycleParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	MongoDB     *MongoDB
	Maintenance dbconn.Maintenance `optional:"true"`
}

// RegisterMongoDBLifecycle connects on start, monitors the connection, and
// disconnects on stop.
func RegisterMongoDBLifecycle(params MongoDBLifeCycleParams) {
	dbconn.RegisterLifecycle(params.Lifecycle, params.MongoDB, params.Maintenance)
}
