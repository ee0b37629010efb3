package docstore

import (
	"reflect"
	"sort"
	"strings"
)

// Op is a filter operator.
type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

// Filter restricts a query on one field. Field may be a dotted path.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents from one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// From starts a query on collection.
func From(collection string) Query { return Query{Collection: collection} }

// Where adds a filter.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// Order sets the sort field.
func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Descending = desc
	return q
}

// Take limits the result size. Zero means no limit.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Matches reports whether data satisfies every filter of q. Drivers without
// native querying use it together with SortDocuments.
func (q Query) Matches(data map[string]any) bool {
	for _, f := range q.Filters {
		want, err := normalize(f.Value)
		if err != nil {
			return false
		}
		got := getPath(data, f.Field)
		switch f.Op {
		case OpEqual:
			if !reflect.DeepEqual(got, want) {
				return false
			}
		case OpArrayContains:
			arr, ok := got.([]any)
			if !ok || !containsValue(arr, want) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// SortDocuments orders docs by q.OrderBy (then by id) and applies q.Limit.
func SortDocuments(docs []Document, q Query) []Document {
	sort.SliceStable(docs, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareValues(getPath(docs[i].Data, q.OrderBy), getPath(docs[j].Data, q.OrderBy))
			if c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return docs[i].Ref.ID < docs[j].Ref.ID
	})
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

// compareValues orders null < bool < number < string < everything else.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		return strings.Compare(av, b.(string))
	}
	return 0
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}

func containsValue(arr []any, v any) bool {
	for _, x := range arr {
		if reflect.DeepEqual(x, v) {
			return true
		}
	}
	return false
}
