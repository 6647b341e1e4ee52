package docstore

// Op filter operator
type Op string

const (
	OpEq            Op = "=="
	OpNe            Op = "!="
	OpLt            Op = "<"
	OpLte           Op = "<="
	OpGt            Op = ">"
	OpGte           Op = ">="
	OpArrayContains Op = "array-contains"
	OpIn            Op = "in"
)

// Direction sort direction
type Direction int

const (
	// Asc ascending
	Asc Direction = iota
	// Desc descending
	Desc
)

// Filter single field condition
type Filter struct {
	Path  string
	Op    Op
	Value any
}

// Order single sort key
type Order struct {
	Path      string
	Direction Direction
}

// Query describes a collection query. Query is immutable, every builder
// method returns a modified copy.
type Query struct {
	Collection string
	Filters    []Filter
	Orders     []Order
	Offset     int
	// Limit 0 means no limit
	Limit int
}

// NewQuery create query on collection
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where add filter
func (q Query) Where(path string, op Op, value any) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, Filter{Path: path, Op: op, Value: value})
	return q
}

// OrderBy add sort key
func (q Query) OrderBy(path string, dir Direction) Query {
	orders := make([]Order, 0, len(q.Orders)+1)
	orders = append(orders, q.Orders...)
	q.Orders = append(orders, Order{Path: path, Direction: dir})
	return q
}

// WithOffset skip first n documents
func (q Query) WithOffset(n int) Query {
	q.Offset = n
	return q
}

// WithLimit return at most n documents
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Page paginate, page starts at 0
func (q Query) Page(page, size int) Query {
	if page < 0 {
		page = 0
	}

	q.Offset = page * size
	q.Limit = size
	return q
}

// UpdateKind kind of field update
type UpdateKind int

const (
	// UpdateSet overwrite field
	UpdateSet UpdateKind = iota
	// UpdateIncrement add Value (int64) to a numeric field
	UpdateIncrement
	// UpdateArrayUnion append Values missing from the array field
	UpdateArrayUnion
	// UpdateArrayRemove remove all Values from the array field
	UpdateArrayRemove
)

// Update single field update
type Update struct {
	Path   string
	Kind   UpdateKind
	Value  any
	Values []any
}

// Set overwrite field at path
func Set(path string, value any) Update {
	return Update{Path: path, Kind: UpdateSet, Value: value}
}

// Increment add n to field at path
func Increment(path string, n int64) Update {
	return Update{Path: path, Kind: UpdateIncrement, Value: n}
}

// ArrayUnion add values to the array at path if absent
func ArrayUnion(path string, values ...any) Update {
	return Update{Path: path, Kind: UpdateArrayUnion, Values: values}
}

// ArrayRemove remove values from the array at path
func ArrayRemove(path string, values ...any) Update {
	return Update{Path: path, Kind: UpdateArrayRemove, Values: values}
}
