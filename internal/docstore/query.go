package docstore

import (
	"encoding/base64"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Op is a predicate operator
type Op string

const (
	OpEqual         Op = "=="
	OpNotEqual      Op = "!="
	OpLess          Op = "<"
	OpLessEqual     Op = "<="
	OpGreater       Op = ">"
	OpGreaterEqual  Op = ">="
	OpArrayContains Op = "array-contains"
	OpIn            Op = "in"
)

// Predicate filters documents on a single (possibly dotted) field
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// Where builds a Predicate
func Where(field string, op Op, value any) Predicate {
	return Predicate{Field: field, Op: op, Value: value}
}

// Order sorts query results on a field. Ties are broken by document id.
type Order struct {
	Field string
	Desc  bool
}

// Query describes a windowed, cursor-paginated read of one collection.
type Query struct {
	Collection string
	Where      []Predicate
	OrderBy    *Order
	Limit      int
	// StartAfter positions the query after the last document of the
	// previous page.
	StartAfter Cursor
}

// NewQuery starts a query on collection
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Filter returns a copy of q with an additional predicate
func (q Query) Filter(field string, op Op, value any) Query {
	q.Where = append(append([]Predicate(nil), q.Where...), Where(field, op, value))
	return q
}

// Sorted returns a copy of q ordered on field
func (q Query) Sorted(field string, desc bool) Query {
	q.OrderBy = &Order{Field: field, Desc: desc}
	return q
}

// Window returns a copy of q limited to n documents
func (q Query) Window(n int) Query {
	q.Limit = n
	return q
}

// After returns a copy of q continuing after cursor
func (q Query) After(cursor Cursor) Query {
	q.StartAfter = cursor
	return q
}

// Page is one window of query results.
type Page struct {
	Docs []Document
	// Cursor follows the last document, zero when the page is empty.
	Cursor Cursor
}

// NewPage wraps docs and derives the cursor for order
func NewPage(docs []Document, order *Order) Page {
	p := Page{Docs: docs}
	if len(docs) > 0 {
		p.Cursor = CursorOf(docs[len(docs)-1], order)
	}
	return p
}

// Cursor is a position in an ordered result: the order-field value and id
// of the last document seen. It stays valid after that document is deleted.
type Cursor struct {
	ID    string
	Value any
}

// CursorOf returns the cursor just after doc
func CursorOf(doc Document, order *Order) Cursor {
	c := Cursor{ID: doc.ID}
	if order != nil {
		c.Value, _ = Lookup(doc.Data, order.Field)
	}
	return c
}

func (c Cursor) IsZero() bool { return c.ID == "" }

type cursorToken struct {
	ID    string `bson:"i"`
	Value any    `bson:"v"`
}

// Token encodes the cursor for clients. The zero cursor encodes as "".
func (c Cursor) Token() (string, error) {
	if c.IsZero() {
		return "", nil
	}
	raw, err := bson.Marshal(cursorToken{ID: c.ID, Value: c.Value})
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// ParseCursor decodes a Token. The empty string is the zero cursor.
func ParseCursor(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidCursor)
	}
	var t cursorToken
	if err := bson.Unmarshal(raw, &t); err != nil || t.ID == "" {
		return Cursor{}, fmt.Errorf("%w: malformed cursor", ErrInvalidCursor)
	}
	return Cursor{ID: t.ID, Value: Normalize(t.Value)}, nil
}
