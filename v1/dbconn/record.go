package dbconn

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Record is an ordered mapping from column name to a normalized value.
type Record struct {
	columns []string
	values  map[string]any
}

// NewRecord builds a Record from parallel column and value slices.
// Values are normalized on the way in.
func NewRecord(columns []string, values []any) Record {
	r := Record{
		columns: make([]string, 0, len(columns)),
		values:  make(map[string]any, len(columns)),
	}
	for i, c := range columns {
		var v any
		if i < len(values) {
			v = values[i]
		}
		r.Set(c, v)
	}
	return r
}

// Set assigns a value, appending the column if it is new.
func (r *Record) Set(column string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = NormalizeValue(value)
}

// Get returns the value stored under column.
func (r Record) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Keys returns the column names in order.
func (r Record) Keys() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Values returns the values in column order.
func (r Record) Values() []any {
	out := make([]any, len(r.columns))
	for i, c := range r.columns {
		out[i] = r.values[c]
	}
	return out
}

// Map returns an unordered copy.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r Record) Len() int { return len(r.columns) }

// MarshalJSON writes the record as an object with keys in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[c])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NormalizeValue renders date/time values as fixed-format strings so every
// backend returns the same shape: DateLayout when the time of day is zero,
// DateTimeLayout otherwise. Byte slices become strings.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return FormatTime(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return FormatTime(*t)
	case []byte:
		return string(t)
	}
	return v
}

// FormatTime applies the date-or-datetime rule used by NormalizeValue.
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format(DateTimeLayout)
}

// NormalizeColumnValue is NormalizeValue for a value scanned from a typed
// column. Times read from a date-only column use DateLayout and every other
// time uses DateTimeLayout, so a datetime at midnight keeps its clock.
func NormalizeColumnValue(v any, dateOnly bool) any {
	layout := DateTimeLayout
	if dateOnly {
		layout = DateLayout
	}
	switch t := v.(type) {
	case time.Time:
		return t.Format(layout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format(layout)
	}
	return NormalizeValue(v)
}

// IsDateType reports whether a driver column type name holds calendar dates
// without a time of day.
func IsDateType(databaseType string) bool {
	return strings.EqualFold(strings.TrimSpace(databaseType), "DATE")
}

// RecordsFromRows zips each row with columns.
func RecordsFromRows(columns []string, rows [][]any) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewRecord(columns, row))
	}
	return out
}
