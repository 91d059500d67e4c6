package sqlite

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// Classify maps modernc sqlite errors onto the dbconn taxonomy. Busy and
// locked databases are retryable; everything else the engine reports is a
// query error.
func Classify(op string, err error) *dbconn.Error {
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return retryable(op, err)
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB:
			e := dbconn.NewConnectionError(dbconn.SQLite, op, "", err)
			e.Retryable = false
			return e
		case sqlite3.SQLITE_INTERRUPT:
			return dbconn.NewTimeoutError(dbconn.SQLite, op, "", err)
		}
		return dbconn.NewQueryError(dbconn.SQLite, op, "", err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "database is locked") {
		return retryable(op, err)
	}
	return nil
}

func retryable(op string, err error) *dbconn.Error {
	e := dbconn.NewQueryError(dbconn.SQLite, op, "", err)
	e.Retryable = true
	return e
}

// TranslateError converts any driver error into a *dbconn.Error.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if e := Classify("", err); e != nil {
		return e
	}
	if e := dbconn.ClassifyCommon(dbconn.SQLite, "", err); e != nil {
		return e
	}
	return dbconn.NewQueryError(dbconn.SQLite, "", "", err)
}

// IsRetryable reports whether err is a transient SQLite failure.
func IsRetryable(err error) bool {
	return dbconn.IsTransient(TranslateError(err), false)
}
