// Package postgres provides the PostgreSQL backend of the connection layer.
//
// The client is opened through GORM (gorm.io/driver/postgres) and then used
// through its database/sql pool, so every operation goes through the shared
// sqlbase engine: per-operation session checkout, retry of transient
// failures, failed-write capture and savepoints.
//
// Core Features:
//   - pgx (default) or lib/pq as the underlying driver
//   - Canonical ? and %s markers rewritten to $1, $2, ...
//   - Per-call statement timeouts via SET statement_timeout on the session
//   - SQLSTATE based error classification (08xxx connection, 57014 timeout,
//     40001/40P01 retryable)
//   - Optional SSH tunnel
//
// Basic Usage:
//
//	import (
//		"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
//		"github.com/Aleph-Alpha/etl-manager/v1/postgres"
//	)
//
//	pg, err := postgres.NewPostgres(postgres.Config{
//		Connection: postgres.Connection{
//			Host:     "localhost",
//			Port:     5432,
//			User:     "postgres",
//			Password: "password",
//			DbName:   "mydb",
//		},
//	}, dbconn.Options{}, log)
//	if err != nil {
//		return err
//	}
//	if err := pg.Connect(ctx); err != nil {
//		return err
//	}
//	defer pg.Disconnect(ctx)
//
//	res, err := pg.ExecuteQuery(ctx, dbconn.Query{
//		Text:           "SELECT id, name FROM users WHERE age > ?",
//		Params:         []any{18},
//		FetchAsRecords: true,
//	})
//
// Transaction Example:
//
//	err = pg.ExecuteTransaction(ctx, []dbconn.Statement{
//		{Query: "UPDATE accounts SET balance = balance - ? WHERE id = ?", Params: []any{amount, fromID}},
//		{Query: "UPDATE accounts SET balance = balance + ? WHERE id = ?", Params: []any{amount, toID}},
//	})
//
// FX Integration:
//
//	app := fx.New(
//		postgres.FXModule,
//		fx.Provide(func() postgres.Config { return cfg }),
//	)
//
// Thread Safety:
//
// All methods on Postgres are safe for concurrent use.
package postgres
