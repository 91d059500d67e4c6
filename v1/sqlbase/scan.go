package sqlbase

import (
	"database/sql"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// scanRows reads every row into positional slices with normalized values.
// Times are rendered by the declared column type: date-only columns as
// dates, everything else as datetimes.
func scanRows(rows *sql.Rows, dateColumn func(databaseType string) bool) ([]string, [][]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, err
	}
	dateOnly := make([]bool, len(cols))
	for i, ct := range types {
		dateOnly[i] = dateColumn(ct.DatabaseTypeName())
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		for i, v := range values {
			values[i] = dbconn.NormalizeColumnValue(v, dateOnly[i])
		}
		out = append(out, values)
	}
	return cols, out, rows.Err()
}
