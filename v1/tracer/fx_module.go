package tracer

import (
	"context"

	"go.uber.org/fx"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// FXModule installs the tracer provider and flushes it when the application
// stops.
//
// Usage:
//
//	app := fx.New(
//	    tracer.FXModule,
//	    fx.Supply(tracer.Config{ServiceName: "etl-manager"}),
//	)
var FXModule = fx.Module("tracer",
	fx.Provide(
		NewTracerWithDI,
	),
	fx.Invoke(RegisterTracerLifecycle),
)

type TracerParams struct {
	fx.In

	Config Config
	Logger dbconn.Logger `optional:"true"`
}

func NewTracerWithDI(params TracerParams) (*Tracer, error) {
	return NewClient(params.Config, params.Logger)
}

// RegisterTracerLifecycle shuts the provider down on stop so buffered spans
// reach the exporter.
func RegisterTracerLifecycle(lc fx.Lifecycle, tracer *Tracer) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if tracer.logger != nil {
				tracer.logger.Info("Shutting down tracer", nil, nil)
			}
			return tracer.Shutdown(ctx)
		},
	})
}
