// Package oracle provides the Oracle Database backend of the connection layer.
//
// Connections go through godror, which needs the Oracle Instant Client
// libraries at run time. Sessions come from the OCI session pool sized by
// PoolConfig; the database/sql pool on top is capped to the same size.
//
// Markers are rewritten to :1, :2, ... and per-call timeouts ride on the
// context deadline, which godror turns into an OCI call timeout. A timed out
// call surfaces as ORA-01013 and is reported as a timeout error.
package oracle
