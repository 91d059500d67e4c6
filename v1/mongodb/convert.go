package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// asOperation accepts both value and pointer operations.
func asOperation(v any) (Operation, bool) {
	switch o := v.(type) {
	case Find, Insert, Update, Delete, Aggregate:
		return o.(Operation), true
	case *Find:
		return derefOp(o)
	case *Insert:
		return derefOp(o)
	case *Update:
		return derefOp(o)
	case *Delete:
		return derefOp(o)
	case *Aggregate:
		return derefOp(o)
	}
	return nil, false
}

func derefOp[T Operation](p *T) (Operation, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

// documentsToRows flattens documents into a column set ordered by first
// appearance. Fields missing from a document are nil in its row.
func documentsToRows(docs []bson.D) ([]string, [][]any) {
	var cols []string
	index := map[string]int{}
	for _, doc := range docs {
		for _, e := range doc {
			if _, ok := index[e.Key]; !ok {
				index[e.Key] = len(cols)
				cols = append(cols, e.Key)
			}
		}
	}

	rows := make([][]any, 0, len(docs))
	for _, doc := range docs {
		row := make([]any, len(cols))
		for _, e := range doc {
			row[index[e.Key]] = normalize(e.Value)
		}
		rows = append(rows, row)
	}
	return cols, rows
}

// normalize turns BSON-specific values into plain Go values. Dates follow
// the same date-or-datetime rendering as relational backends.
func normalize(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return dbconn.FormatTime(t.Time().UTC())
	case primitive.Timestamp:
		return t.T
	case primitive.Decimal128:
		return t.String()
	case primitive.Binary:
		return t.Data
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	return dbconn.NormalizeValue(v)
}
