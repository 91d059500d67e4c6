package oracle

import (
	"github.com/godror/godror"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// ORA codes with special handling.
const (
	oraUniqueConstraint = 1
	oraResourceBusy     = 54
	oraDeadlock         = 60
	oraCanceled         = 1013
	oraInvalidLogin     = 1017
	oraParentKeyMissing = 2291
	oraChildRecordFound = 2292
)

var connectionCodes = map[int]bool{
	3113:  true, // end-of-file on communication channel
	3114:  true, // not connected
	3135:  true, // connection lost contact
	12170: true, // connect timeout
	12514: true, // listener does not know of service
	12541: true, // no listener
	12543: true, // destination host unreachable
}

// Classify maps ORA errors onto the dbconn taxonomy.
func Classify(op string, err error) *dbconn.Error {
	oraErr, ok := godror.AsOraErr(err)
	if !ok {
		return nil
	}
	code := oraErr.Code()
	switch {
	case code == oraDeadlock, code == oraResourceBusy:
		e := dbconn.NewQueryError(dbconn.Oracle, op, oraErr.Message(), err)
		e.Retryable = true
		return e
	case code == oraCanceled:
		return dbconn.NewTimeoutError(dbconn.Oracle, op, oraErr.Message(), err)
	case code == oraInvalidLogin:
		e := dbconn.NewConnectionError(dbconn.Oracle, op, oraErr.Message(), err)
		e.Retryable = false
		return e
	case connectionCodes[code]:
		return dbconn.NewConnectionError(dbconn.Oracle, op, oraErr.Message(), err)
	}
	return dbconn.NewQueryError(dbconn.Oracle, op, oraErr.Message(), err)
}

// TranslateError converts any driver error into a *dbconn.Error.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if e := Classify("", err); e != nil {
		return e
	}
	if e := dbconn.ClassifyCommon(dbconn.Oracle, "", err); e != nil {
		return e
	}
	return dbconn.NewQueryError(dbconn.Oracle, "", "", err)
}

// IsRetryable reports whether err is a transient Oracle failure.
func IsRetryable(err error) bool {
	return dbconn.IsTransient(TranslateError(err), false)
}

// IsDuplicateKey reports ORA-00001.
func IsDuplicateKey(err error) bool { return oraCode(err) == oraUniqueConstraint }

// IsForeignKeyViolation reports ORA-02291 and ORA-02292.
func IsForeignKeyViolation(err error) bool {
	code := oraCode(err)
	return code == oraParentKeyMissing || code == oraChildRecordFound
}

func oraCode(err error) int {
	if oraErr, ok := godror.AsOraErr(err); ok {
		return oraErr.Code()
	}
	return 0
}
