// Package database is the connection factory: it turns a Config naming one
// backend into a ready-to-connect dbconn.Connection.
//
// # Supported Backends
//
//   - postgresql (aliases postgres, pg)
//   - mysql (alias mariadb)
//   - sqlite (alias sqlite3)
//   - sqlserver (alias mssql)
//   - oracle
//   - mongodb (alias mongo)
//
// # Basic Usage
//
//	cfg, err := database.LoadConfig("database.yaml")
//	if err != nil {
//	    return err
//	}
//	conn, err := database.New(cfg, cfg.ClientOptions(log), log)
//	if err != nil {
//	    return err
//	}
//	if err := conn.Connect(ctx); err != nil {
//	    return err
//	}
//	defer conn.Disconnect(ctx)
//
// A configuration file looks like:
//
//	type: postgres
//	postgres:
//	  connection:
//	    host: db.internal
//	    user: etl
//	    password: secret
//	    db_name: warehouse
//	  ssh:
//	    host: bastion.internal
//	    user: deploy
//	    private_key_path: /etc/etl/id_ed25519
//	options:
//	  retry:
//	    max_retries: 3
//	    initial_delay: 2s
//	    multiplier: 2
//	  long_query_threshold: 30s
//	failed_queries:
//	  capacity: 500
//	  fallback_path: /var/lib/etl/failed.jsonl
//	maintenance:
//	  health_interval: 15s
//	  replay_interval: 1m
//
// # Errors
//
// An unknown type, or a type without its configuration block, is reported
// as a dbconn validation error before any network activity.
//
// # FX Integration
//
// FXModule provides dbconn.Connection from a Config in the container and
// registers the connect, maintenance and disconnect hooks. Pair it with
// metrics.FXModule to have query metrics recorded through dbconn.Observer.
package database
