package mongodb

// Operation is a structured document-store operation carried in
// dbconn.Query.Operation. Find, Insert, Update, Delete and Aggregate
// implement it.
type Operation interface {
	collection() string
	name() string
}

// Find returns the documents matching Filter. A zero Limit returns all.
type Find struct {
	Collection string
	Filter     any
	Projection any
	Sort       any
	Limit      int64
}

// Insert adds Documents.
type Insert struct {
	Collection string
	Documents  []any
}

// Update applies Update to every document matching Filter.
type Update struct {
	Collection string
	Filter     any
	Update     any
	Upsert     bool
}

// Delete removes every document matching Filter.
type Delete struct {
	Collection string
	Filter     any
}

// Aggregate runs Pipeline and returns its output documents.
type Aggregate struct {
	Collection string
	Pipeline   any
}

func (o Find) collection() string      { return o.Collection }
func (o Insert) collection() string    { return o.Collection }
func (o Update) collection() string    { return o.Collection }
func (o Delete) collection() string    { return o.Collection }
func (o Aggregate) collection() string { return o.Collection }

func (Find) name() string      { return "find" }
func (Insert) name() string    { return "insert" }
func (Update) name() string    { return "update" }
func (Delete) name() string    { return "delete" }
func (Aggregate) name() string { return "aggregate" }
