package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// ErrSavepointUnsupported is returned by ExecuteWithSavepoint on backends
// without savepoint syntax.
var ErrSavepointUnsupported = dbconn.NewValidationError("", "savepoint", "savepoints are not supported by this backend", nil)

// ExecuteBatchQuery runs statement for every row in values, one transaction
// per chunk of batchSize rows. A failed chunk is rolled back and its error
// returned; chunks committed before it stay committed.
func (c *Client) ExecuteBatchQuery(ctx context.Context, statement string, values [][]any, batchSize int) error {
	if len(values) == 0 {
		return nil
	}
	ctx, span := c.startSpan(ctx, "ExecuteBatchQuery", statement)
	defer span.End()

	size := c.driver.batchSize(batchSize)
	text := dbconn.TranslatePlaceholders(statement, c.driver.Placeholder)

	start := time.Now()
	for lo := 0; lo < len(values); lo += size {
		hi := min(lo+size, len(values))
		chunk := values[lo:hi]

		err := c.exec.Do(ctx, func(ctx context.Context) error {
			return c.withTx(ctx, func(tx *sql.Tx) error {
				stmt, err := tx.PrepareContext(ctx, text)
				if err != nil {
					return c.classify("prepare", err, false)
				}
				defer stmt.Close()
				for i, row := range chunk {
					if _, err := stmt.ExecContext(ctx, row...); err != nil {
						return fmt.Errorf("row %d: %w", lo+i, c.classify("batch", err, false))
					}
				}
				return nil
			})
		})
		if err != nil {
			c.observe("batch", time.Since(start), err)
			recordSpanError(span, err)
			c.logger.Error("Batch execution failed", err, c.fields(map[string]interface{}{
				"query":       statement,
				"chunk_start": lo,
				"chunk_size":  len(chunk),
			}))
			for _, row := range chunk {
				c.captureFailed(statement, row, err)
			}
			return err
		}
		c.logger.Debug("Batch chunk committed", nil, c.fields(map[string]interface{}{
			"rows":  hi,
			"total": len(values),
		}))
	}
	c.observe("batch", time.Since(start), nil)
	return nil
}

// ExecuteTransaction runs the statements in order in one transaction. Any
// failure rolls the whole transaction back.
func (c *Client) ExecuteTransaction(ctx context.Context, statements []dbconn.Statement) error {
	if len(statements) == 0 {
		return nil
	}
	ctx, span := c.startSpan(ctx, "ExecuteTransaction", statements[0].Query)
	defer span.End()

	start := time.Now()
	err := c.exec.Do(ctx, func(ctx context.Context) error {
		return c.withTx(ctx, func(tx *sql.Tx) error {
			for i, st := range statements {
				text := dbconn.TranslatePlaceholders(st.Query, c.driver.Placeholder)
				if _, err := tx.ExecContext(ctx, text, st.Params...); err != nil {
					return fmt.Errorf("statement %d: %w", i, c.classify("transaction", err, false))
				}
			}
			return nil
		})
	})
	c.observe("transaction", time.Since(start), err)
	if err != nil {
		recordSpanError(span, err)
		c.logger.Error("Transaction failed and was rolled back", err, c.fields(map[string]interface{}{
			"statements": len(statements),
		}))
	}
	return err
}

// ExecuteWithSavepoint runs the statements in one transaction, guarding each
// with a savepoint. A failing statement is rolled back to its savepoint and
// the transaction continues; the rest commit. The returned error lists the
// statements that were rolled back.
func (c *Client) ExecuteWithSavepoint(ctx context.Context, statements []dbconn.Statement, savepoint string) error {
	if c.driver.Savepoint == nil || c.driver.RollbackTo == nil {
		return ErrSavepointUnsupported
	}
	if !savepointName.MatchString(savepoint) {
		return dbconn.NewValidationError(c.driver.Name, "savepoint", fmt.Sprintf("invalid savepoint name %q", savepoint), nil)
	}

	ctx, span := c.startSpan(ctx, "ExecuteWithSavepoint", savepoint)
	defer span.End()

	var failed []error
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		failed = failed[:0]
		for i, st := range statements {
			if _, err := tx.ExecContext(ctx, c.driver.Savepoint(savepoint)); err != nil {
				return c.classify("savepoint", err, false)
			}
			text := dbconn.TranslatePlaceholders(st.Query, c.driver.Placeholder)
			if _, err := tx.ExecContext(ctx, text, st.Params...); err != nil {
				failed = append(failed, fmt.Errorf("statement %d: %w", i, c.classify("savepoint", err, false)))
				c.logger.Warn("Statement failed, rolling back to savepoint", err, c.fields(map[string]interface{}{
					"savepoint": savepoint,
					"query":     st.Query,
				}))
				if _, rerr := tx.ExecContext(ctx, c.driver.RollbackTo(savepoint)); rerr != nil {
					return c.classify("rollback to savepoint", rerr, false)
				}
			}
		}
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return err
	}
	return errors.Join(failed...)
}

// withTx runs fn inside a transaction on a dedicated session, rolling back on
// error and committing otherwise.
func (c *Client) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	db := c.DB()
	if db == nil {
		return dbconn.ErrNotConnected
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return c.classify("begin", err, true)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				c.logger.Error("Rollback failed", rerr, c.fields(nil))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		// the commit may have been applied; running fn again could repeat it
		return dbconn.Final(c.classify("commit", err, false))
	}
	return nil
}
