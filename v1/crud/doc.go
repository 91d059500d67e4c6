// Package crud provides table-level create, read, update and delete over any
// relational dbconn.Connection.
//
// The Engine builds SQL from validated identifiers and a per-backend Dialect
// (catalog queries, inferred column types, row-limit syntax). Values are always
// bound as parameters using the canonical ? marker; the connection rewrites
// markers for its backend.
//
// # Basic Usage
//
//	conn, _ := sqlite.NewSQLite(sqlite.Config{Path: "etl.db"}, dbconn.Options{}, log)
//	_ = conn.Connect(ctx)
//
//	engine, err := crud.New(conn, crud.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	ok, err := engine.Create(ctx, "sales", rows, []string{"region", "amount", "day"}, "id")
//	records, err := engine.Read(ctx, "sales", crud.ReadOptions{
//		Where:   "region = ?",
//		Params:  []any{"emea"},
//		OrderBy: "day DESC",
//		Limit:   100,
//	})
//
// # Safety
//
// Table names must match IdentifierPattern, optionally schema-qualified.
// Update always requires a where clause; Delete requires one when safeDelete
// is set. Rows whose length differs from the column list are rejected before
// any statement runs.
//
// # Retries
//
// Exactly one layer retries. Connections implementing dbconn.Retrying (every
// client in this module) retry their own entry points and queue failed
// writes, so the engine calls them once. Over any other connection the
// engine applies its own policy, with an allow-list of retryable connection
// errors and timeouts, and Create retries chunk by chunk so a committed
// chunk is never written twice.
package crud
