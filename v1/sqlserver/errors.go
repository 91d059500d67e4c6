package sqlserver

import (
	"errors"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// SQL Server error numbers with special handling.
const (
	errDeadlockVictim     = 1205
	errLockRequestTimeout = 1222
	errLoginFailed        = 18456
	errDuplicateKey       = 2627
	errUniqueIndex        = 2601
	errForeignKey         = 547
)

// transientNumbers are the errors Azure SQL and on-premise servers report
// while a database is failing over or throttling.
var transientNumbers = map[int32]bool{
	233:   true,
	4060:  true,
	10053: true,
	10054: true,
	10060: true,
	40197: true,
	40501: true,
	40613: true,
	49918: true,
}

// Classify maps go-mssqldb errors onto the dbconn taxonomy by error number.
func Classify(op string, err error) *dbconn.Error {
	msErr, ok := asServerError(err)
	if ok {
		switch {
		case msErr.Number == errDeadlockVictim, msErr.Number == errLockRequestTimeout:
			e := dbconn.NewQueryError(dbconn.SQLServer, op, msErr.Message, err)
			e.Retryable = true
			return e
		case msErr.Number == errLoginFailed:
			e := dbconn.NewConnectionError(dbconn.SQLServer, op, msErr.Message, err)
			e.Retryable = false
			return e
		case transientNumbers[msErr.Number]:
			return dbconn.NewConnectionError(dbconn.SQLServer, op, msErr.Message, err)
		}
		return dbconn.NewQueryError(dbconn.SQLServer, op, msErr.Message, err)
	}

	var streamErr mssql.StreamError
	if errors.As(err, &streamErr) {
		return dbconn.NewConnectionError(dbconn.SQLServer, op, "", err)
	}
	return nil
}

func asServerError(err error) (mssql.Error, bool) {
	var value mssql.Error
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *mssql.Error
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return mssql.Error{}, false
}

func classify(op string, err error) error {
	if e := Classify(op, err); e != nil {
		return e
	}
	if e := dbconn.ClassifyCommon(dbconn.SQLServer, op, err); e != nil {
		return e
	}
	return dbconn.NewQueryError(dbconn.SQLServer, op, "", err)
}

// TranslateError converts any driver error into a *dbconn.Error.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	return classify("", err)
}

// IsRetryable reports whether err is a transient SQL Server failure.
func IsRetryable(err error) bool {
	return dbconn.IsTransient(TranslateError(err), false)
}

// IsDuplicateKey reports whether err is a primary key or unique index violation.
func IsDuplicateKey(err error) bool {
	msErr, ok := asServerError(err)
	return ok && (msErr.Number == errDuplicateKey || msErr.Number == errUniqueIndex)
}

// IsForeignKeyViolation reports whether err is a constraint conflict.
func IsForeignKeyViolation(err error) bool {
	msErr, ok := asServerError(err)
	return ok && msErr.Number == errForeignKey
}
