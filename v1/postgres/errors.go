package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// SQLSTATE codes with special handling.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeQueryCanceled        = "57014"
	codeTooManyConnections   = "53300"
	codeAdminShutdown        = "57P01"
	codeCrashShutdown        = "57P02"
	codeCannotConnectNow     = "57P03"
)

// Classify maps pgx and lib/pq errors onto the dbconn taxonomy by SQLSTATE.
// It returns nil for errors that carry no PostgreSQL-specific information.
func Classify(op string, err error) *dbconn.Error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyCode(op, pgErr.Code, pgErr.Message, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyCode(op, string(pqErr.Code), pqErr.Message, err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return dbconn.NewConnectionError(dbconn.PostgreSQL, op, "", err)
	}
	if pgconn.Timeout(err) {
		return dbconn.NewTimeoutError(dbconn.PostgreSQL, op, "", err)
	}
	if pgconn.SafeToRetry(err) {
		return dbconn.NewConnectionError(dbconn.PostgreSQL, op, "", err)
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return dbconn.NewQueryError(dbconn.PostgreSQL, op, "duplicate key violation", err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return dbconn.NewQueryError(dbconn.PostgreSQL, op, "foreign key violation", err)
	}
	return nil
}

func classifyCode(op, code, msg string, err error) *dbconn.Error {
	switch {
	case code == codeQueryCanceled:
		return dbconn.NewTimeoutError(dbconn.PostgreSQL, op, msg, err)
	case strings.HasPrefix(code, "08"),
		code == codeTooManyConnections,
		code == codeAdminShutdown,
		code == codeCrashShutdown,
		code == codeCannotConnectNow:
		return dbconn.NewConnectionError(dbconn.PostgreSQL, op, msg, err)
	case code == codeSerializationFailure, code == codeDeadlockDetected:
		e := dbconn.NewQueryError(dbconn.PostgreSQL, op, msg, err)
		e.Retryable = true
		return e
	}
	return dbconn.NewQueryError(dbconn.PostgreSQL, op, msg, err)
}

// TranslateError converts any driver error into a *dbconn.Error. It returns
// nil for nil and passes errors that are already classified through.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if e := Classify("", err); e != nil {
		return e
	}
	if e := dbconn.ClassifyCommon(dbconn.PostgreSQL, "", err); e != nil {
		return e
	}
	return dbconn.NewQueryError(dbconn.PostgreSQL, "", "", err)
}

// IsRetryable reports whether err is a transient PostgreSQL failure.
func IsRetryable(err error) bool {
	return dbconn.IsTransient(TranslateError(err), false)
}

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	return sqlState(err) == codeUniqueViolation || errors.Is(err, gorm.ErrDuplicatedKey)
}

// IsForeignKeyViolation reports whether err is a foreign key constraint violation.
func IsForeignKeyViolation(err error) bool {
	return sqlState(err) == codeForeignKeyViolation || errors.Is(err, gorm.ErrForeignKeyViolated)
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
