package mysql

import (
	"database/sql/driver"
	"errors"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// MySQL server and client error numbers with special handling.
const (
	errAccessDenied       = 1045
	errTooManyConnections = 1040
	errDuplicateEntry     = 1062
	errLockWaitTimeout    = 1205
	errDeadlock           = 1213
	errNoReferencedRow    = 1452
	errServerShutdown     = 1053
	errServerGone         = 2006
	errServerLost         = 2013
	errQueryInterrupted   = 3024
)

// Classify maps go-sql-driver errors onto the dbconn taxonomy by error number.
func Classify(op string, err error) *dbconn.Error {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return classifyNumber(op, myErr, err)
	}
	if errors.Is(err, mysqldriver.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) {
		return dbconn.NewConnectionError(dbconn.MySQL, op, "", err)
	}
	return nil
}

func classifyNumber(op string, myErr *mysqldriver.MySQLError, err error) *dbconn.Error {
	switch myErr.Number {
	case errServerGone, errServerLost, errServerShutdown, errTooManyConnections:
		return dbconn.NewConnectionError(dbconn.MySQL, op, myErr.Message, err)
	case errAccessDenied:
		e := dbconn.NewConnectionError(dbconn.MySQL, op, myErr.Message, err)
		e.Retryable = false
		return e
	case errLockWaitTimeout, errDeadlock:
		e := dbconn.NewQueryError(dbconn.MySQL, op, myErr.Message, err)
		e.Retryable = true
		return e
	case errQueryInterrupted:
		return dbconn.NewTimeoutError(dbconn.MySQL, op, myErr.Message, err)
	}
	return dbconn.NewQueryError(dbconn.MySQL, op, myErr.Message, err)
}

// TranslateError converts any driver error into a *dbconn.Error.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if e := Classify("", err); e != nil {
		return e
	}
	if e := dbconn.ClassifyCommon(dbconn.MySQL, "", err); e != nil {
		return e
	}
	return dbconn.NewQueryError(dbconn.MySQL, "", "", err)
}

// IsRetryable reports whether err is a transient MySQL failure.
func IsRetryable(err error) bool {
	return dbconn.IsTransient(TranslateError(err), false)
}

// IsDuplicateKey reports whether err is a duplicate entry on a unique key.
func IsDuplicateKey(err error) bool { return errorNumber(err) == errDuplicateEntry }

// IsForeignKeyViolation reports whether err is a missing referenced row.
func IsForeignKeyViolation(err error) bool { return errorNumber(err) == errNoReferencedRow }

func errorNumber(err error) uint16 {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	return 0
}
