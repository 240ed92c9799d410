package docstore

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Lookup resolves a dotted field path inside document data.
func Lookup(data map[string]any, path string) (any, bool) {
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Compare orders two normalized values of the same family (numbers,
// strings, booleans or times). ok is false when they are not comparable.
func Compare(a, b any) (c int, ok bool) {
	a, b = Normalize(a), Normalize(b)
	if fa, isNum := number(a); isNum {
		fb, isNum := number(b)
		if !isNum {
			return 0, false
		}
		return cmp(fa < fb, fa > fb), true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		return cmp(!x && y, x && !y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}
	return 0, false
}

func cmp(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func equal(a, b any) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}

// Match reports whether data satisfies every predicate.
func Match(data map[string]any, preds []Predicate) bool {
	for _, p := range preds {
		if !matchOne(data, p) {
			return false
		}
	}
	return true
}

func matchOne(data map[string]any, p Predicate) bool {
	v, ok := Lookup(data, p.Field)
	if !ok {
		return false
	}
	switch p.Op {
	case OpEqual:
		return equal(v, p.Value)
	case OpNotEqual:
		_, comparable := Compare(v, p.Value)
		return comparable && !equal(v, p.Value)
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		c, ok := Compare(v, p.Value)
		if !ok {
			return false
		}
		switch p.Op {
		case OpLess:
			return c < 0
		case OpLessEqual:
			return c <= 0
		case OpGreater:
			return c > 0
		default:
			return c >= 0
		}
	case OpArrayContains:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for _, el := range arr {
			if equal(el, p.Value) {
				return true
			}
		}
		return false
	case OpIn:
		candidates, ok := Normalize(p.Value).([]any)
		if !ok {
			return false
		}
		for _, c := range candidates {
			if equal(v, c) {
				return true
			}
		}
		return false
	}
	return false
}

// CompareDocs orders two documents by order, falling back to id. Documents
// without a comparable order value sort last.
func CompareDocs(a, b Document, order *Order) int {
	if order == nil {
		return strings.Compare(a.ID, b.ID)
	}
	av, aok := Lookup(a.Data, order.Field)
	bv, bok := Lookup(b.Data, order.Field)
	c := 0
	switch {
	case aok && bok:
		c, _ = Compare(av, bv)
	case aok:
		return -1
	case bok:
		return 1
	}
	if c == 0 {
		c = strings.Compare(a.ID, b.ID)
	}
	if order.Desc {
		c = -c
	}
	return c
}

// Evaluate runs q against an unordered set of documents.
func Evaluate(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if !Match(d.Data, q.Where) {
			continue
		}
		if q.OrderBy != nil {
			if _, ok := Lookup(d.Data, q.OrderBy.Field); !ok {
				continue
			}
		}
		out = append(out, d)
	}
	SortDocs(out, q.OrderBy)
	if !q.StartAfter.IsZero() {
		i := sort.Search(len(out), func(i int) bool {
			return compareCursor(out[i], q.StartAfter, q.OrderBy) > 0
		})
		out = out[i:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// compareCursor orders d against the position c under order.
func compareCursor(d Document, c Cursor, order *Order) int {
	if order == nil {
		return strings.Compare(d.ID, c.ID)
	}
	v, _ := Lookup(d.Data, order.Field)
	r, _ := Compare(v, c.Value)
	if r == 0 {
		r = strings.Compare(d.ID, c.ID)
	}
	if order.Desc {
		r = -r
	}
	return r
}

// SortDocs sorts docs in place by order.
func SortDocs(docs []Document, order *Order) {
	sort.SliceStable(docs, func(i, j int) bool {
		return CompareDocs(docs[i], docs[j], order) < 0
	})
}

// ApplyUpdate returns a copy of data with fields merged in. Dotted keys
// create intermediate maps; Increment values add to the current number.
func ApplyUpdate(data map[string]any, fields map[string]any) (map[string]any, error) {
	out := deepCopy(data)
	for path, value := range fields {
		parts := strings.Split(path, ".")
		parent := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := parent[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				parent[part] = next
			}
			parent = next
		}
		leaf := parts[len(parts)-1]
		inc, isInc := value.(Increment)
		if !isInc {
			parent[leaf] = Normalize(value)
			continue
		}
		switch cur := parent[leaf].(type) {
		case nil:
			parent[leaf] = inc.Delta
		case int64:
			parent[leaf] = cur + inc.Delta
		case float64:
			parent[leaf] = cur + float64(inc.Delta)
		default:
			return nil, fmt.Errorf("increment %s: field is %T, not a number", path, cur)
		}
	}
	return out, nil
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		s := make([]any, len(t))
		for i, el := range t {
			s[i] = copyValue(el)
		}
		return s
	}
	return v
}

// Clone returns a deep copy of the document
func (d Document) Clone() Document {
	return Document{ID: d.ID, Data: deepCopy(d.Data)}
}
