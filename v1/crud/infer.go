package crud

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"
	"unicode/utf8"
)

// ColumnDef is one column of a generated CREATE TABLE.
type ColumnDef struct {
	Name string
	Type string
}

type valueKind int

const (
	kindNull valueKind = iota
	kindBool
	kindInt
	kindFloat
	kindString
	kindDate
	kindDateTime
	kindBinary
	kindStructured
)

// columnSample accumulates what a column's values look like.
type columnSample struct {
	kinds  map[valueKind]struct{}
	big    bool
	maxLen int
}

func (s *columnSample) add(v any) {
	v = deref(v)
	k := kindOf(v)
	if k == kindNull {
		return
	}
	if s.kinds == nil {
		s.kinds = make(map[valueKind]struct{}, 1)
	}
	s.kinds[k] = struct{}{}

	switch k {
	case kindInt:
		if n, ok := asInt64(v); ok && (n > math.MaxInt32 || n < math.MinInt32) {
			s.big = true
		}
	}
	// Every kind counts towards the length once mixed kinds fall back to text.
	s.maxLen = max(s.maxLen, utf8.RuneCountInString(fmt.Sprint(v)))
}

func (s *columnSample) has(kinds ...valueKind) bool {
	if len(s.kinds) != len(kinds) {
		return false
	}
	for _, k := range kinds {
		if _, ok := s.kinds[k]; !ok {
			return false
		}
	}
	return true
}

func (s *columnSample) sqlType(t TypeMap) (sqlType string, integer bool) {
	switch {
	case len(s.kinds) == 0:
		return t.Default, false
	case s.has(kindInt):
		if s.big {
			return t.BigInteger, true
		}
		return t.Integer, true
	case s.has(kindFloat), s.has(kindInt, kindFloat):
		return t.Float, false
	case s.has(kindBool):
		return t.Boolean, false
	case s.has(kindDate):
		return t.Date, false
	case s.has(kindDateTime), s.has(kindDate, kindDateTime):
		return t.DateTime, false
	case s.has(kindBinary):
		return t.Binary, false
	case s.has(kindStructured):
		return t.Structured, false
	}
	return t.String(s.maxLen), false
}

// InferColumnTypes derives a column definition for every column from all
// non-null sample values. A primary key column of integer type becomes the
// dialect's identity column; a primary key missing from columns is
// prepended as one.
func (d Dialect) InferColumnTypes(values [][]any, columns []string, primaryKey string) []ColumnDef {
	samples := make([]columnSample, len(columns))
	for _, row := range values {
		for i := range columns {
			if i < len(row) {
				samples[i].add(row[i])
			}
		}
	}

	defs := make([]ColumnDef, 0, len(columns)+1)
	pkSeen := false
	for i, col := range columns {
		typ, integer := samples[i].sqlType(d.Types)
		if primaryKey != "" && col == primaryKey {
			pkSeen = true
			if integer || len(samples[i].kinds) == 0 {
				typ = d.Types.Identity
			} else {
				typ += " PRIMARY KEY"
			}
		}
		defs = append(defs, ColumnDef{Name: col, Type: typ})
	}
	if primaryKey != "" && !pkSeen {
		defs = append([]ColumnDef{{Name: primaryKey, Type: d.Types.Identity}}, defs...)
	}
	return defs
}

// kindOf expects a dereferenced value.
func kindOf(v any) valueKind {
	switch x := v.(type) {
	case nil:
		return kindNull
	case time.Time:
		if x.IsZero() {
			return kindNull
		}
		h, m, s := x.Clock()
		if h == 0 && m == 0 && s == 0 && x.Nanosecond() == 0 {
			return kindDate
		}
		return kindDateTime
	case json.RawMessage:
		return kindStructured
	case []byte:
		return kindBinary
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return kindInt
		}
		return kindFloat
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return kindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return kindInt
	case reflect.Float32, reflect.Float64:
		return kindFloat
	case reflect.String:
		return kindString
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return kindStructured
	}
	return kindString
}

func asInt64(v any) (int64, bool) {
	if n, ok := v.(json.Number); ok {
		i, err := n.Int64()
		return i, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(u), true
	}
	return 0, false
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}
