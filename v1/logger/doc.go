// Package logger provides the structured logger shared by the database clients.
//
// It wraps go.uber.org/zap with a small method set,
// Info/Debug/Warn/Error/Fatal(msg, err, fields...), which is the shape every
// client package declares as its own Logger interface.
//
// # Direct Usage
//
//	log := logger.NewLoggerClient(logger.Config{Level: "info", ServiceName: "etl-manager"})
//	log.Warn("long running query", nil, map[string]interface{}{"duration_ms": 61000})
//
// # FX Module Integration
//
//	app := fx.New(
//		logger.FXModule,
//		fx.Supply(logger.Config{Level: "debug"}),
//	)
//
// # Tests
//
// Use NewFromZap with a zaptest/observer core to assert on emitted entries,
// or NewNop to discard output.
package logger
