// Package sshtunnel opens an SSH port forward through a bastion host so a
// database that is not directly reachable can be used as if it listened on
// the loopback interface.
//
//	m := sshtunnel.NewManager(cfg, "db.internal", 5432, log)
//	port, err := m.Start(ctx, sshtunnel.DefaultMaxRetries, sshtunnel.DefaultInitialBackoff)
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//	// connect to 127.0.0.1:port
//
// Start retries failed attempts with exponential backoff (1s, 2s, 4s, ...).
// Close may be called at any time, including before Start.
package sshtunnel
