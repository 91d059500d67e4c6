package mongodb

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

var errUnsupportedOperation = dbconn.NewValidationError(dbconn.MongoDB, "execute", "unsupported query operation", nil)

// TranslateError converts any driver error into a *dbconn.Error.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	return classify("", err)
}

// IsRetryable reports whether err is a transient MongoDB failure.
func IsRetryable(err error) bool {
	return dbconn.IsTransient(TranslateError(err), false)
}

// IsDuplicateKey reports a unique index violation.
func IsDuplicateKey(err error) bool { return mongo.IsDuplicateKeyError(err) }

func classify(op string, err error) error {
	var already *dbconn.Error
	if errors.As(err, &already) {
		return already
	}

	switch {
	case errors.Is(err, mongo.ErrClientDisconnected):
		return dbconn.NewConnectionError(dbconn.MongoDB, op, "", err)
	case mongo.IsNetworkError(err):
		return dbconn.NewConnectionError(dbconn.MongoDB, op, "", err)
	case mongo.IsTimeout(err):
		return dbconn.NewTimeoutError(dbconn.MongoDB, op, "", err)
	}

	e := dbconn.NewQueryError(dbconn.MongoDB, op, "", err)
	if hasLabel(err, "TransientTransactionError") || hasLabel(err, "RetryableWriteError") {
		e.Retryable = true
	}
	return e
}

func hasLabel(err error, label string) bool {
	var le mongo.LabeledError
	return errors.As(err, &le) && le.HasErrorLabel(label)
}
